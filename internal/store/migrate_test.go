// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/staffauth/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	stepsCalls     int
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { m.stepsCalls++; return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/staff":   "pgx5://u:p@db:5432/staff",
		"postgresql://u:p@db:5432/staff": "pgx5://u:p@db:5432/staff",
		"pgx5://u:p@db:5432/staff":       "pgx5://u:p@db:5432/staff",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrator_ErrNoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &mockMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(1))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")
	m := &Migrator{m: &mockMigrate{upErr: boom, downErr: boom, stepsErr: boom, versionErr: boom, forceErr: boom}}

	tests := []struct {
		name string
		run  func() error
		code string
	}{
		{"up", m.Up, "MIGRATION_UP_FAILED"},
		{"down", m.Down, "MIGRATION_DOWN_FAILED"},
		{"steps", func() error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"version", func() error { _, _, err := m.Version(); return err }, "MIGRATION_VERSION_FAILED"},
		{"force", func() error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"negative force", func() error { return m.Force(-1) }, "INVALID_VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_StepsZeroIsNoOp(t *testing.T) {
	mock := &mockMigrate{}
	m := &Migrator{m: mock}
	require.NoError(t, m.Steps(0))
	assert.Equal(t, 0, mock.stepsCalls)
}

func TestMigrator_VersionOnEmptyDatabase(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestMigrator_Status(t *testing.T) {
	latest, err := LatestVersion()
	require.NoError(t, err)
	require.GreaterOrEqual(t, latest, uint(2))

	t.Run("fresh database has everything pending", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Zero(t, st.Version)
		require.NotEmpty(t, st.Pending)
		assert.Equal(t, uint(1), st.Pending[0])
		assert.Equal(t, latest, st.Pending[len(st.Pending)-1])
	})

	t.Run("latest has nothing pending", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: latest}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Empty(t, st.Pending)
	})

	t.Run("dirty flag surfaces", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 1, dirty: true}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.True(t, st.Dirty)
		assert.Equal(t, []uint{2}, st.Pending[:1])
	})
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		src, db   error
		component string
	}{
		{"clean", nil, nil, ""},
		{"source", errors.New("src"), nil, "source"},
		{"database", nil, errors.New("db"), "database"},
		{"both", errors.New("src"), errors.New("db"), "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &mockMigrate{closeSourceErr: tt.src, closeDbErr: tt.db}}
			err := m.Close()
			if tt.component == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestMigrationsFS_Naming(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := 0, 0
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name), "%s should match NNNNNN_name.(up|down).sql", name)
		if regexp.MustCompile(`\.up\.sql$`).MatchString(name) {
			ups++
		} else {
			downs++
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down")
}
