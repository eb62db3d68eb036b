package usecase_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octomend/pkg/domain/model"
	"github.com/m-mizutani/octomend/pkg/domain/types"
	fake "github.com/m-mizutani/octomend/pkg/infra/memory"
)

func TestConsolidateDuplicateRepo(t *testing.T) {
	ctx := testContext()

	t.Run("consolidation takes precedence over work in the duplicate", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		canonical := seedRepository(a, "billing", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
		dup := seedRepository(a, "billing-old", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
		topic := a.AddBranch(dup, model.BranchSnapshot{Name: "topic", HeadSHA: "1111", HasUnmergedWork: true})
		stale := a.AddBranch(dup, model.BranchSnapshot{Name: "done", HeadSHA: "2222"})
		pr := a.AddPullRequest(dup, model.PullRequestSnapshot{
			Number: 1, SourceBranch: "topic", TargetBranch: "main", Open: true, Mergeable: true,
		})

		e := newEnv(t, nil, a)
		report := e.run(t, false)

		gt.A(t, report.Tasks).Length(1)
		gt.V(t, report.Tasks[0].Kind).Equal(types.TaskConsolidateDuplicateRepo)
		gt.V(t, report.Tasks[0].TargetEntityID).Equal(dup)
		gt.True(t, taskOf(report, pr) == nil)
		gt.True(t, taskOf(report, stale) == nil)
		gt.A(t, a.Mutations()).Length(0)

		c := gt.R1(e.store.GetRepository(ctx, canonical)).NoError(t)
		gt.True(t, c.Canonical)
		gt.V(t, c.CarriedEntities).Equal([]types.EntityID{topic, pr})
		gt.A(t, c.GapNotes).Length(1)

		d := gt.R1(e.store.GetRepository(ctx, dup)).NoError(t)
		gt.V(t, d.State).Equal(types.RepositoryConsolidated)
		gt.V(t, d.IsDuplicateOf).Equal(canonical)

		// the consolidated duplicate is left alone afterwards
		report = e.run(t, false)
		gt.A(t, report.Tasks).Length(0)
	})

	t.Run("explicit duplicate group and creation time override", func(t *testing.T) {
		a := fake.NewAdapter(types.ProviderGitHub)
		first := seedRepository(a, "frontend", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))
		second := seedRepository(a, "web-ui", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		other := seedRepository(a, "frontend-copy", time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))

		fleet := &model.FleetConfig{
			Repositories: []model.RepositoryConfig{
				{Provider: types.ProviderGitHub, Owner: "acme", Name: "frontend", DuplicateGroup: "ui"},
				{Provider: types.ProviderGitHub, Owner: "acme", Name: "web-ui", DuplicateGroup: "ui", CreatedAt: "2016-01-01T00:00:00Z"},
			},
		}
		e := newEnv(t, fleet, a)
		report := e.run(t, false)

		// frontend-copy is not in the fleet and is ignored
		gt.A(t, report.Tasks).Length(1)
		gt.V(t, report.Tasks[0].TargetEntityID).Equal(first)
		gt.V(t, report.Tasks[0].RelatedEntityID).Equal(second)

		_, err := e.store.GetRepository(ctx, other)
		gt.Error(t, err)
	})
}
