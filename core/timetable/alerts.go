package timetable

import (
	"fmt"

	"github.com/tobias-barakaa/newschool-sub008/core"
)

const conflictAlertTemplate = "conflict_alert"

type (
	conflictAlertRow struct {
		Cell    string
		Teacher string
		Subject string
		With    []string
	}

	conflictAlertData struct {
		Previous int
		Current  int
		Rows     []conflictAlertRow
	}
)

// alertLocked mails the configured recipients when the number of conflicting cells grew
// past before. Sending is asynchronous.
func (svc *Service) alertLocked(before int) {
	if svc.mailSvc == nil || len(svc.alertTo) == 0 {
		return
	}
	conflicts := svc.conflictsLocked()
	if len(conflicts) <= before {
		return
	}

	data := conflictAlertData{Previous: before, Current: len(conflicts)}
	for _, k := range SortedConflictKeys(conflicts) {
		c := conflicts[k]
		row := conflictAlertRow{Cell: k.String(), Teacher: c.Teacher, Subject: svc.state.Subjects[k].Subject}
		for _, other := range c.ConflictingClasses {
			row.With = append(row.With, other.CellKey.String())
		}
		data.Rows = append(data.Rows, row)
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           svc.alertTo,
		Subject:      fmt.Sprintf("Timetable conflicts: %d cells double booked", data.Current),
		TemplateName: conflictAlertTemplate,
		TemplateData: data,
	})
}
