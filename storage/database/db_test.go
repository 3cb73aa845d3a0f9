package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobias-barakaa/newschool-sub008/core"
)

func TestDSN(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          "5432",
		Name:          "newschool",
		User:          "app",
		Password:      "s3cret",
		AdminUser:     "postgres",
		AdminPassword: "root",
	}}

	tests := []struct {
		name     string
		admin    bool
		wantUser string
		wantPwd  string
		wantSSL  string
		tls      bool
	}{
		{name: "app user", wantUser: "app", wantPwd: "s3cret", wantSSL: "require"},
		{name: "admin user", admin: true, wantUser: "postgres", wantPwd: "root", wantSSL: "require"},
		{name: "tls disabled", tls: true, wantUser: "app", wantPwd: "s3cret", wantSSL: "disable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.tls
			u, err := url.Parse(dsn(conf.Database.Name, tt.admin, conf))
			require.NoError(t, err)

			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db:5432", u.Host)
			assert.Equal(t, "/newschool", u.Path)
			assert.Equal(t, tt.wantUser, u.User.Username())
			pwd, _ := u.User.Password()
			assert.Equal(t, tt.wantPwd, pwd)
			assert.Equal(t, tt.wantSSL, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}
}
