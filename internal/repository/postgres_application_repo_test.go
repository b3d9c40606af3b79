package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/reapply/internal/model"
)

func TestRepositories_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
	var _ CredentialStore = (*PostgresProfileRepo)(nil)
	var _ ResumeSettingRepository = (*PostgresProfileRepo)(nil)
	var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
	var _ FollowUpRepository = (*PostgresFollowUpRepo)(nil)
}

func newTestApplication(userID, company string, applied time.Time) *model.JobApplication {
	return &model.JobApplication{
		UserID:         userID,
		Company:        company,
		Position:       "Engineer",
		WorkMode:       model.WorkModeRemote,
		Location:       "Tokyo",
		Status:         model.StatusApplied,
		AppliedDate:    applied,
		RecruiterEmail: "hr@" + company + ".example.com",
		EmailThreadID:  "thread-" + company,
	}
}

func TestPostgresApplicationRepo_CreateAndList_OrderedByAppliedDateDesc(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresApplicationRepo(db)
	user := createTestUser(t, db)

	older := newTestApplication(user.ID, "older", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	newer := newTestApplication(user.ID, "newer", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	for _, app := range []*model.JobApplication{older, newer} {
		if err := repo.Create(ctx, app); err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if app.ID == "" {
			t.Fatal("Create did not assign ID")
		}
	}

	apps, err := repo.ListByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUserID error: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("len(apps) = %d, want 2", len(apps))
	}
	if apps[0].Company != "newer" || apps[1].Company != "older" {
		t.Errorf("order = [%s, %s], want [newer, older]", apps[0].Company, apps[1].Company)
	}
	if apps[0].EmailThreadID != "thread-newer" {
		t.Errorf("EmailThreadID = %q", apps[0].EmailThreadID)
	}
}

func TestPostgresApplicationRepo_ScopedByUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresApplicationRepo(db)
	owner := createTestUser(t, db)
	other := createTestUser(t, db)

	app := newTestApplication(owner.ID, "acme", time.Now().UTC())
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := repo.FindByID(ctx, other.ID, app.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got != nil {
		t.Error("他ユーザーの応募が取得できた")
	}

	updated, err := repo.UpdateStatus(ctx, other.ID, app.ID, model.StatusRejected)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if updated {
		t.Error("他ユーザーの応募ステータスが更新できた")
	}
}

func TestPostgresApplicationRepo_UpdateStatusAndCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresApplicationRepo(db)
	user := createTestUser(t, db)

	a := newTestApplication(user.ID, "a", time.Now().UTC())
	b := newTestApplication(user.ID, "b", time.Now().UTC())
	repo.Create(ctx, a)
	repo.Create(ctx, b)

	ok, err := repo.UpdateStatus(ctx, user.ID, a.ID, model.StatusInterviewing)
	if err != nil || !ok {
		t.Fatalf("UpdateStatus = %v, %v", ok, err)
	}

	counts, err := repo.CountByStatus(ctx, user.ID)
	if err != nil {
		t.Fatalf("CountByStatus error: %v", err)
	}
	if counts[model.StatusInterviewing] != 1 || counts[model.StatusApplied] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestPostgresFollowUpRepo_CreateBatch_SetsCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db)
	apps := NewPostgresApplicationRepo(db)
	repo := NewPostgresFollowUpRepo(db)

	app := newTestApplication(user.ID, "acme", time.Now().UTC())
	if err := apps.Create(ctx, app); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := []*model.FollowUp{
		{ScheduledAt: now.Add(24 * time.Hour), Subject: "s2", Body: "b2", Status: model.FollowUpPending, Timing: model.TimingTomorrow},
		{ScheduledAt: now, Subject: "s1", Body: "b1", Status: model.FollowUpPending, Timing: model.TimingImmediate},
	}
	if err := repo.CreateBatch(ctx, app.ID, batch); err != nil {
		t.Fatalf("CreateBatch error: %v", err)
	}

	got, err := repo.ListByApplicationID(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListByApplicationID error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Subject != "s1" {
		t.Errorf("first follow-up = %q, want s1 (scheduled earliest)", got[0].Subject)
	}

	stored, _ := apps.FindByID(ctx, user.ID, app.ID)
	if stored.FollowUpCount != 2 {
		t.Errorf("FollowUpCount = %d, want 2", stored.FollowUpCount)
	}
}

func TestPostgresFollowUpRepo_CreateBatch_RollsBackOnFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresFollowUpRepo(db)

	missingApp := uuid.New().String()
	batch := []*model.FollowUp{
		{ScheduledAt: time.Now(), Subject: "s", Body: "b", Status: model.FollowUpPending, Timing: model.TimingImmediate},
	}
	if err := repo.CreateBatch(ctx, missingApp, batch); err == nil {
		t.Fatal("存在しない応募へのフォローアップ作成がエラーにならなかった")
	}

	got, err := repo.ListByApplicationID(ctx, missingApp)
	if err != nil {
		t.Fatalf("ListByApplicationID error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ロールバックされずに %d 件残っている", len(got))
	}
}

func TestPostgresProfileRepo_CredentialLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresProfileRepo(db)
	user := createTestUser(t, db)

	// 未連携状態でのClearは冪等
	if err := repo.ClearCredential(ctx, user.ID); err != nil {
		t.Fatalf("ClearCredential on empty profile error: %v", err)
	}

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	cred := &model.OAuthCredential{AccessToken: "at", RefreshToken: "rt", ExpiresAt: expires, TokenType: model.TokenTypeBearer}
	if err := repo.SaveCredential(ctx, user.ID, cred); err != nil {
		t.Fatalf("SaveCredential error: %v", err)
	}

	p, err := repo.FindProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindProfile error: %v", err)
	}
	if !p.MailConnected || p.Credential == nil || p.Credential.RefreshToken != "rt" {
		t.Fatalf("profile = %+v", p)
	}

	// 上書き保存
	cred.AccessToken = "at2"
	if err := repo.SaveCredential(ctx, user.ID, cred); err != nil {
		t.Fatalf("SaveCredential overwrite error: %v", err)
	}
	p, _ = repo.FindProfile(ctx, user.ID)
	if p.Credential.AccessToken != "at2" {
		t.Errorf("AccessToken = %q, want at2", p.Credential.AccessToken)
	}

	for i := 0; i < 2; i++ {
		if err := repo.ClearCredential(ctx, user.ID); err != nil {
			t.Fatalf("ClearCredential #%d error: %v", i+1, err)
		}
	}
	p, _ = repo.FindProfile(ctx, user.ID)
	if p.MailConnected || p.Credential != nil {
		t.Errorf("ClearCredential後のprofile = %+v", p)
	}
}

func TestPostgresProfileRepo_ActiveResume(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresProfileRepo(db)
	user := createTestUser(t, db)

	name, err := repo.GetActiveResume(ctx, user.ID)
	if err != nil || name != "" {
		t.Fatalf("GetActiveResume = %q, %v", name, err)
	}

	if err := repo.SetActiveResume(ctx, user.ID, "resume_1.pdf"); err != nil {
		t.Fatalf("SetActiveResume error: %v", err)
	}
	if name, _ := repo.GetActiveResume(ctx, user.ID); name != "resume_1.pdf" {
		t.Errorf("active = %q, want resume_1.pdf", name)
	}

	if err := repo.SetActiveResume(ctx, user.ID, ""); err != nil {
		t.Fatalf("SetActiveResume clear error: %v", err)
	}
	if name, _ := repo.GetActiveResume(ctx, user.ID); name != "" {
		t.Errorf("active = %q, want empty", name)
	}
}
