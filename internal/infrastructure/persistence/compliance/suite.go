// Package compliance holds the behavioral test suite every task.Repository
// implementation must pass.
package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/ptr"
)

// cet is a fixed offset zone so the suite doesn't depend on tzdata.
var cet = time.FixedZone("CET", 60*60)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// RunRepositoryComplianceTest runs the standard set of tests against a
// Repository implementation. setup returns a ready repository; every subtest
// uses fresh user IDs, so a shared database needs no cleanup between them.
func RunRepositoryComplianceTest(t *testing.T, setup func(t *testing.T) task.Repository) {
	t.Run("CreateAndFindTask", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		deadline := time.Date(2026, 3, 10, 12, 30, 0, 123456000, time.UTC)
		in := newTask(userID, 0, &deadline)
		in.ValueImpact = 80
		in.Difficulty = 3
		in.PriorityScore = 55

		created, err := repo.CreateTask(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 1, created.Version)

		found, err := repo.FindTaskByID(ctx, userID, in.ID)
		require.NoError(t, err)
		assert.Equal(t, in.ID, found.ID)
		assert.Equal(t, in.Title, found.Title)
		assert.Equal(t, domain.TaskStatusOngoing, found.Status)
		assert.Equal(t, 80, found.ValueImpact)
		assert.Equal(t, 3, found.Difficulty)
		assert.Equal(t, 55, found.PriorityScore)
		assert.False(t, found.IsDeleted)
		require.NotNil(t, found.Deadline)
		assert.True(t, deadline.Equal(*found.Deadline), "deadline round-trips at microsecond precision")
		assert.True(t, in.CreatedAt.Equal(found.CreatedAt))
		assert.Equal(t, 1, found.Version)
	})

	t.Run("FindTaskIsScopedToOwner", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		created, err := repo.CreateTask(ctx, newTask(userID, 0, nil))
		require.NoError(t, err)

		_, err = repo.FindTaskByID(ctx, newUser(), created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		_, err = repo.FindTaskByID(ctx, userID, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		err = repo.HardDeleteTask(ctx, newUser(), created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		_, err = repo.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:     created.ID,
			UserID:     newUser(),
			UpdateMask: []string{domain.FieldTitle},
			Title:      ptr.To("stolen"),
		})
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("UpdateTaskAppliesMaskAndBumpsVersion", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		deadline := baseTime.Add(48 * time.Hour)
		created, err := repo.CreateTask(ctx, newTask(userID, 0, &deadline))
		require.NoError(t, err)

		updated, err := repo.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:        created.ID,
			UserID:        userID,
			UpdateMask:    []string{domain.FieldStatus, domain.FieldDeadline, domain.FieldPriorityScore},
			Status:        ptr.To(domain.TaskStatusCompleted),
			PriorityScore: ptr.To(12),
		})
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
		assert.Nil(t, updated.Deadline, "nil deadline in mask clears it")
		assert.Equal(t, 12, updated.PriorityScore)
		assert.Equal(t, created.Title, updated.Title, "fields outside the mask are kept")
		assert.Equal(t, 2, updated.Version)
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	})

	t.Run("UpdateTaskEtag", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		created, err := repo.CreateTask(ctx, newTask(userID, 0, nil))
		require.NoError(t, err)

		params := domain.UpdateTaskParams{
			TaskID:     created.ID,
			UserID:     userID,
			UpdateMask: []string{domain.FieldTitle},
			Title:      ptr.To("first"),
			Etag:       ptr.To(created.Etag()),
		}
		_, err = repo.UpdateTask(ctx, params)
		require.NoError(t, err)

		// same etag again is stale now
		params.Title = ptr.To("second")
		_, err = repo.UpdateTask(ctx, params)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		params.TaskID = uuid.NewString()
		_, err = repo.UpdateTask(ctx, params)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("FindUserTasksOrderAndSoftDelete", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		var want []string
		for i := range 3 {
			created, err := repo.CreateTask(ctx, newTask(userID, time.Duration(i)*time.Minute, nil))
			require.NoError(t, err)
			want = append([]string{created.ID}, want...)
		}
		_, err := repo.CreateTask(ctx, newTask(newUser(), 0, nil))
		require.NoError(t, err)

		_, err = repo.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:     want[1],
			UserID:     userID,
			UpdateMask: []string{domain.FieldIsDeleted},
			IsDeleted:  ptr.To(true),
		})
		require.NoError(t, err)

		all, err := repo.FindUserTasks(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, want, taskIDs(all), "newest first, soft-deleted included")

		active, err := repo.QueryTasks(ctx, userID, domain.TaskFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{want[0], want[2]}, taskIDs(active))

		found, err := repo.FindTaskByID(ctx, userID, want[1])
		require.NoError(t, err)
		assert.True(t, found.IsDeleted)
	})

	t.Run("HardDeleteTaskRemovesMembership", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		created, err := repo.CreateTask(ctx, newTask(userID, 0, nil))
		require.NoError(t, err)
		list, err := repo.CreateList(ctx, newList(userID, 0))
		require.NoError(t, err)
		require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, &list.ID))

		require.NoError(t, repo.HardDeleteTask(ctx, userID, created.ID))

		_, err = repo.FindTaskByID(ctx, userID, created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		relations, err := repo.FindTaskListRelations(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, relations)
	})

	t.Run("Lists", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		older, err := repo.CreateList(ctx, newList(userID, 0))
		require.NoError(t, err)
		newer, err := repo.CreateList(ctx, newList(userID, time.Minute))
		require.NoError(t, err)
		_, err = repo.CreateList(ctx, newList(newUser(), 0))
		require.NoError(t, err)

		lists, err := repo.FindUserLists(ctx, userID)
		require.NoError(t, err)
		require.Len(t, lists, 2)
		assert.Equal(t, newer.ID, lists[0].ID)
		assert.Equal(t, older.ID, lists[1].ID)
	})

	t.Run("SetTaskList", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		created, err := repo.CreateTask(ctx, newTask(userID, 0, nil))
		require.NoError(t, err)
		first, err := repo.CreateList(ctx, newList(userID, 0))
		require.NoError(t, err)
		second, err := repo.CreateList(ctx, newList(userID, time.Minute))
		require.NoError(t, err)
		foreign, err := repo.CreateList(ctx, newList(newUser(), 0))
		require.NoError(t, err)

		require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, &first.ID))
		require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, &first.ID), "reassigning is idempotent")
		require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, &second.ID))

		relations, err := repo.FindTaskListRelations(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []domain.TaskListRelation{{TaskID: created.ID, ListID: second.ID}}, relations)

		err = repo.SetTaskList(ctx, userID, created.ID, &foreign.ID)
		assert.ErrorIs(t, err, domain.ErrListNotFound)
		err = repo.SetTaskList(ctx, userID, created.ID, ptr.To(uuid.NewString()))
		assert.ErrorIs(t, err, domain.ErrListNotFound)
		err = repo.SetTaskList(ctx, userID, uuid.NewString(), &second.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, nil))
		require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, nil), "clearing twice is fine")
		relations, err = repo.FindTaskListRelations(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, relations)
	})

	t.Run("AtomicRollsBack", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()
		boom := errors.New("boom")

		in := newTask(userID, 0, nil)
		err := repo.Atomic(ctx, func(tx task.Repository) error {
			if _, err := tx.CreateTask(ctx, in); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.FindTaskByID(ctx, userID, in.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("QueryTasksMatchesInMemoryFilter", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()
		userID := newUser()

		listID := seedFilterFixture(t, repo, userID)

		all, err := repo.FindUserTasks(ctx, userID)
		require.NoError(t, err)
		relations, err := repo.FindTaskListRelations(ctx, userID)
		require.NoError(t, err)
		memberships := domain.MembershipIndex(relations)

		for name, f := range filterCases(listID) {
			t.Run(name, func(t *testing.T) {
				remote, err := repo.QueryTasks(ctx, userID, f)
				require.NoError(t, err)

				local := domain.FilterTasks(all, f, memberships)

				assert.Equal(t, taskIDs(local), taskIDs(remote))
				assert.ElementsMatch(t, local, remote)
			})
		}
	})
}

func newUser() string {
	return "user-" + uuid.NewString()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id.String()
}

// newTask builds a task created offset after baseTime.
func newTask(userID string, offset time.Duration, deadline *time.Time) *domain.Task {
	createdAt := baseTime.Add(offset)
	return &domain.Task{
		ID:            newID(),
		UserID:        userID,
		Title:         "task " + uuid.NewString()[:8],
		Status:        domain.TaskStatusOngoing,
		Deadline:      domain.NormalizeDeadline(deadline),
		ValueImpact:   domain.DefaultValueImpact,
		Difficulty:    domain.DefaultDifficulty,
		PriorityScore: 30,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func newList(userID string, offset time.Duration) *domain.TaskList {
	return &domain.TaskList{
		ID:        newID(),
		UserID:    userID,
		Title:     "list",
		CreatedAt: baseTime.Add(offset),
	}
}

func cetTime(day, hour, minute, second, nanos int) *time.Time {
	t := time.Date(2026, 3, day, hour, minute, second, nanos, cet)
	return &t
}

// seedFilterFixture creates tasks on and around the day and week boundaries
// of 2026-03-10 (CET) and returns the list half of them belong to.
func seedFilterFixture(t *testing.T, repo task.Repository, userID string) string {
	t.Helper()
	ctx := context.Background()

	list, err := repo.CreateList(ctx, newList(userID, 0))
	require.NoError(t, err)

	fixtures := []struct {
		status   domain.TaskStatus
		deadline *time.Time
		deleted  bool
		inList   bool
	}{
		{domain.TaskStatusOngoing, cetTime(10, 0, 0, 0, 0), false, true},
		{domain.TaskStatusCompleted, cetTime(10, 23, 59, 59, 999999000), false, false},
		{domain.TaskStatusCompleted, nil, false, true},
		{domain.TaskStatusCompleted, cetTime(10, 12, 0, 0, 0), true, true},
		{domain.TaskStatusInProgress, cetTime(11, 0, 0, 0, 0), false, false},
		{domain.TaskStatusOngoing, cetTime(8, 0, 0, 0, 0), false, true},
		{domain.TaskStatusCanceled, cetTime(14, 23, 59, 59, 0), false, false},
		{domain.TaskStatusOngoing, cetTime(15, 0, 0, 0, 0), false, true},
		{domain.TaskStatusOngoing, cetTime(9, 23, 59, 59, 999999000), false, false},
		{domain.TaskStatusInProgress, cetTime(12, 8, 0, 0, 1000), false, true},
	}

	for i, fx := range fixtures {
		in := newTask(userID, time.Duration(i)*time.Second, fx.deadline)
		in.Status = fx.status
		in.IsDeleted = fx.deleted
		created, err := repo.CreateTask(ctx, in)
		require.NoError(t, err)
		if fx.inList {
			require.NoError(t, repo.SetTaskList(ctx, userID, created.ID, &list.ID))
		}
	}

	return list.ID
}

func filterCases(listID string) map[string]domain.TaskFilter {
	day := cetTime(10, 15, 0, 0, 0)
	utcDay := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	east := time.Date(2026, 3, 11, 1, 0, 0, 0, time.FixedZone("EET", 2*60*60))

	return map[string]domain.TaskFilter{
		"empty":           {},
		"status":          {Status: ptr.To(domain.TaskStatusCompleted)},
		"status no match": {Status: ptr.To(domain.TaskStatus("in-progress"))},
		"date":            {Date: day},
		"date utc":        {Date: &utcDay},
		"date east":       {Date: &east},
		"week":            {WeekOf: day},
		"list":            {ListID: &listID},
		"unknown list":    {ListID: ptr.To(uuid.NewString())},
		"range": {DateRange: &domain.TimeWindow{
			From: *cetTime(10, 0, 0, 0, 0),
			To:   *cetTime(12, 8, 0, 0, 1000),
		}},
		"range sub-microsecond bounds": {DateRange: &domain.TimeWindow{
			From: *cetTime(10, 0, 0, 0, 1),
			To:   *cetTime(12, 8, 0, 0, 999),
		}},
		"range inverted": {DateRange: &domain.TimeWindow{
			From: *cetTime(12, 0, 0, 0, 0),
			To:   *cetTime(10, 0, 0, 0, 0),
		}},
		"date and week": {Date: day, WeekOf: day},
		"everything": {
			Status: ptr.To(domain.TaskStatusOngoing),
			WeekOf: day,
			ListID: &listID,
		},
	}
}

func taskIDs(tasks []domain.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
