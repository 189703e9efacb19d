// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tablewise/staffauth/internal/store"
)

func tableExists(ctx context.Context, name string) bool {
	pool, err := store.Connect(ctx, connStr, store.ConnectOptions{})
	Expect(err).NotTo(HaveOccurred())
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx, `SELECT to_regclass('public.' || $1) IS NOT NULL`, name).Scan(&exists)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx      context.Context
		migrator *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })
	})

	It("reports every migration pending on an empty database", func() {
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(BeZero())
		Expect(st.Dirty).To(BeFalse())
		Expect(st.Pending).To(Equal([]uint{1, 2}))
	})

	It("applies all migrations", func() {
		Expect(migrator.Up()).To(Succeed())

		latest, err := store.LatestVersion()
		Expect(err).NotTo(HaveOccurred())
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(latest))
		Expect(st.Pending).To(BeEmpty())

		for _, table := range []string{"staff_users", "staff_sessions", "password_reset_tokens"} {
			Expect(tableExists(ctx, table)).To(BeTrue(), table)
		}
	})

	It("treats a second Up as a no-op", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("steps back one migration", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists(ctx, "staff_sessions")).To(BeFalse())
		Expect(tableExists(ctx, "staff_users")).To(BeTrue())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Pending).To(Equal([]uint{2}))
	})

	It("rolls everything back with Down", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(tableExists(ctx, "staff_users")).To(BeFalse())
	})
})
