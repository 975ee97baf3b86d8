package postgres_test

import (
	"context"
	"fmt"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bochendong/dragon-continue/pkg/mergecache"
	"github.com/bochendong/dragon-continue/pkg/mergecache/postgres"
	"github.com/bochendong/dragon-continue/pkg/mergecache/storetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("DRAGON_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("DRAGON_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Store", func() {
	storetest.StoreBehaviors(func() mergecache.Store {
		ctx := context.Background()
		store, err := postgres.NewStore(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all rows before each test for isolation.
		entries, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, e := range entries {
			Expect(store.Delete(ctx, e.Key)).To(Succeed())
		}
		return store
	})

	It("returns an error for an unreachable server", func() {
		connStr()
		_, err := postgres.NewStore(context.Background(), "host=invalid port=9999 user=bad dbname=bad sslmode=disable connect_timeout=1")
		Expect(err).To(HaveOccurred())
		fmt.Fprintf(GinkgoWriter, "expected error: %v\n", err)
	})
})
