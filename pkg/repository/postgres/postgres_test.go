package postgres_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/repository/postgres"
	"github.com/m-mizutani/octomend/pkg/repository/testhelper"
	"github.com/m-mizutani/octomend/pkg/utils/safe"
	"github.com/m-mizutani/octomend/pkg/utils/testutil"
)

func TestPostgresStore(t *testing.T) {
	dsn := testutil.GetEnvOrSkip(t, "TEST_POSTGRES_DSN")

	ctx := context.Background()
	store, err := postgres.New(ctx, dsn)
	gt.NoError(t, err)
	defer safe.Close(store)

	testhelper.TestAll(t, store, store)
}
