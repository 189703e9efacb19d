// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const seedYAML = `staff:
  - tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f
    email: admin@example.com
    name: Admin
    role: admin
    password: correct horse battery
  - tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f
    email: chef@example.com
    name: Chef
    role: chef
    password: correct horse battery
`

var _ = Describe("Staff commands", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx)
	})

	Describe("seed", func() {
		var seedFile string

		BeforeEach(func() {
			seedFile = filepath.Join(GinkgoT().TempDir(), "staff.yaml")
			Expect(os.WriteFile(seedFile, []byte(seedYAML), 0o600)).To(Succeed())
		})

		It("creates the listed accounts", func() {
			out, err := staffauth(ctx, "", "seed", "--file", seedFile)
			Expect(err).NotTo(HaveOccurred(), "seed failed: %s", out)
			Expect(out).To(ContainSubstring("Seeded 2 account(s)"))

			var role string
			err = env.pool.QueryRow(ctx,
				"SELECT role FROM staff_users WHERE email = $1", "chef@example.com",
			).Scan(&role)
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(Equal("chef"))
		})

		It("is idempotent (running twice succeeds without duplicates)", func() {
			out, err := staffauth(ctx, "", "seed", "--file", seedFile)
			Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", out)

			out, err = staffauth(ctx, "", "seed", "--file", seedFile)
			Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", out)
			Expect(out).To(ContainSubstring("skipped 2 existing"))

			var count int
			Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM staff_users").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(2))
		})
	})

	Describe("user", func() {
		It("creates and deactivates an account", func() {
			out, err := staffauth(ctx, "correct horse battery\n", "user", "create",
				"--tenant", "6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f",
				"--email", "waiter@example.com",
				"--name", "Waiter",
				"--role", "waiter")
			Expect(err).NotTo(HaveOccurred(), "user create failed: %s", out)

			out, err = staffauth(ctx, "", "user", "deactivate", "--email", "waiter@example.com")
			Expect(err).NotTo(HaveOccurred(), "user deactivate failed: %s", out)

			var active bool
			err = env.pool.QueryRow(ctx,
				"SELECT is_active FROM staff_users WHERE email = $1", "waiter@example.com",
			).Scan(&active)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())
		})
	})

	Describe("sweep", func() {
		It("runs against an empty database", func() {
			out, err := staffauth(ctx, "", "sweep")
			Expect(err).NotTo(HaveOccurred(), "sweep failed: %s", out)
			Expect(out).To(ContainSubstring("Removed 0 expired session(s)"))
		})
	})

	Describe("migrate status", func() {
		It("reports no pending migrations after up", func() {
			out, err := staffauth(ctx, "", "migrate", "status")
			Expect(err).NotTo(HaveOccurred(), "migrate status failed: %s", out)
			Expect(out).To(ContainSubstring("Pending: none"))
		})
	})
})
