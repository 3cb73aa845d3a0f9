package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/tobias-barakaa/newschool-sub008/apps"
	"github.com/tobias-barakaa/newschool-sub008/apps/shared"
	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
)

type (
	summary struct {
		Action      string    `json:"action"`
		Cells       int       `json:"cells"`
		Conflicts   int       `json:"conflicts"`
		LastUpdated time.Time `json:"lastUpdated"`
	}

	conflictRow struct {
		Cell    string   `json:"cell"`
		Teacher string   `json:"teacher"`
		Subject string   `json:"subject"`
		With    []string `json:"with"`
	}

	diffResult struct {
		Identical bool   `json:"identical"`
		Diff      string `json:"diff"`
	}
)

func newResetCommand(cli *commandLine) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the cached timetable with the seed fixture",
		Long: `Replace the cached timetable with the seed fixture. Every edit and the pinned
teacher timetable are lost. A running API picks the change up on its next start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := cli.confirm("Reset the timetable to the seed fixture? All edits are lost. [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					_, err = fmt.Fprintln(cli.out, "Aborted.")
					return err
				}
			}
			return cli.withService(cmd.Context(), func(svc timetable.ServiceInterface) error {
				st, err := svc.ResetTimetable(cmd.Context())
				if err != nil {
					return err
				}
				return cli.printSummary("reset", st, svc.ConflictCount())
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newReloadCommand(cli *commandLine) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the seed fixture",
		Long: `Reload the seed fixture into the cache. With --force the cache slot is deleted
first, which also discards a snapshot written by an incompatible version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.withService(cmd.Context(), func(svc timetable.ServiceInterface) error {
				var (
					st     timetable.State
					err    error
					action = "reload"
				)
				if force {
					action = "force-reload"
					st, err = svc.ForceReloadMockData(cmd.Context())
				} else {
					st, err = svc.LoadMockData(cmd.Context())
				}
				if err != nil {
					return err
				}
				return cli.printSummary(action, st, svc.ConflictCount())
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete the cache slot before reloading")
	return cmd
}

func newStatsCommand(cli *commandLine) *cobra.Command {
	var grade string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print timetable statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.withService(cmd.Context(), func(svc timetable.ServiceInterface) error {
				grade = strings.TrimSpace(grade)
				s := svc.Stats(grade)
				return cli.render(s, func(w io.Writer) error {
					return writeStats(w, grade, s)
				})
			})
		},
	}
	cmd.Flags().StringVar(&grade, "grade", "", "limit to one grade, its breaks included (default: every cell)")
	return cmd
}

func newConflictsCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List double-booked cells",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.withService(cmd.Context(), func(svc timetable.ServiceInterface) error {
				rows := conflictRows(svc)
				return cli.render(rows, func(w io.Writer) error {
					if len(rows) == 0 {
						_, err := fmt.Fprintln(w, "No conflicts.")
						return err
					}
					for _, r := range rows {
						if _, err := fmt.Fprintf(w, "%s: %s (%s) also in %s\n", r.Cell, r.Teacher, r.Subject, strings.Join(r.With, ", ")); err != nil {
							return err
						}
					}
					_, err := fmt.Fprintf(w, "%d conflicting cells\n", len(rows))
					return err
				})
			})
		},
	}
}

func newDiffCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show how the cached timetable differs from the seed fixture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := shared.LoadSeed(cli.conf)
			if err != nil {
				return errors.Wrap(err, "loading seed fixture")
			}
			return cli.withService(cmd.Context(), func(svc timetable.ServiceInterface) error {
				res, err := diffStates(seed, svc.State())
				if err != nil {
					return err
				}
				return cli.render(res, func(w io.Writer) error {
					if res.Identical {
						_, err := fmt.Fprintln(w, "No differences.")
						return err
					}
					_, err := io.WriteString(w, res.Diff)
					return err
				})
			})
		},
	}
}

// confirm asks a yes/no question on the terminal. Anything but y or yes is a no.
func (cli *commandLine) confirm(prompt string) (bool, error) {
	if !isTerminalFunc(cli.inFd) {
		return false, apps.NewArgumentError("stdin is not a terminal: pass --yes to confirm")
	}
	if _, err := fmt.Fprint(cli.out, prompt); err != nil {
		return false, err
	}
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errors.Wrap(err, "reading answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (cli *commandLine) printSummary(action string, st timetable.State, conflicts int) error {
	sum := summary{
		Action:      action,
		Cells:       len(st.Subjects),
		Conflicts:   conflicts,
		LastUpdated: st.LastUpdated,
	}
	return cli.render(sum, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %d cells, %d conflicts (last updated %s)\n",
			sum.Action, sum.Cells, sum.Conflicts, sum.LastUpdated.UTC().Format(time.RFC3339))
		return err
	})
}

func conflictRows(svc timetable.ServiceInterface) []conflictRow {
	conflicts := svc.Conflicts()
	subjects := svc.State().Subjects

	rows := make([]conflictRow, 0, len(conflicts))
	for _, k := range timetable.SortedConflictKeys(conflicts) {
		c := conflicts[k]
		row := conflictRow{Cell: k.String(), Teacher: c.Teacher, Subject: subjects[k].Subject}
		for _, other := range c.ConflictingClasses {
			row.With = append(row.With, other.CellKey.String())
		}
		rows = append(rows, row)
	}
	return rows
}

// diffStates compares both states in their fixture form.
func diffStates(seed, cached timetable.State) (diffResult, error) {
	a, err := timetable.MarshalFixture(seed)
	if err != nil {
		return diffResult{}, errors.Wrap(err, "marshalling seed")
	}
	b, err := timetable.MarshalFixture(cached)
	if err != nil {
		return diffResult{}, errors.Wrap(err, "marshalling cached timetable")
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "fixture",
		ToFile:   "cache",
		Context:  3,
	})
	if err != nil {
		return diffResult{}, errors.Wrap(err, "diffing")
	}
	return diffResult{Identical: text == "", Diff: text}, nil
}

func writeStats(w io.Writer, grade string, s timetable.Stats) error {
	if grade == "" {
		grade = "all"
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-24s %s\n", "Grade:", grade)
	fmt.Fprintf(bw, "%-24s %d\n", "Lessons:", s.TotalLessons)
	fmt.Fprintf(bw, "%-24s %d\n", "Breaks:", s.TotalBreaks)
	fmt.Fprintf(bw, "%-24s %d\n", "Double lessons:", s.DoubleLessons)
	fmt.Fprintf(bw, "%-24s %s\n", "Most busy teacher:", s.MostBusyTeacher)
	fmt.Fprintf(bw, "%-24s %s\n", "Most busy day:", s.MostBusyDay)
	fmt.Fprintf(bw, "%-24s %s\n", "Most busy time:", s.MostBusyTime)
	fmt.Fprintf(bw, "%-24s %s\n", "Lessons per day:", strconv.FormatFloat(s.AverageLessonsPerDay, 'f', -1, 64))
	fmt.Fprintf(bw, "%-24s %d%%\n", "Completion:", s.CompletionPercentage)

	writeCounts(bw, "Teacher workload", s.TeacherWorkload)
	writeCounts(bw, "Subjects", s.SubjectDistribution)
	writeCounts(bw, "Breaks", s.BreakDistribution)
	writeCounts(bw, "Days", s.DayDistribution)
	writeCounts(bw, "Time slots", s.TimeSlotUsage)
	return bw.Flush()
}

// writeCounts lists counts busiest first, ties by name.
func writeCounts(w io.Writer, title string, counts map[string]int) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(w, "  %-22s %d\n", name, counts[name])
	}
}
