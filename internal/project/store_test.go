package project

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/review/pkg/database"
)

// openTestDB はマイグレーション適用済みのインメモリDBを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), ":memory:", migrations, migrationsDir)
	if err != nil {
		t.Fatalf("インメモリDBの準備に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestProject はテスト用のプロジェクトを生成する。
func newTestProject(name string, created time.Time) Project {
	return Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: name + "の説明",
		Status:      statusActive,
		CreatedAt:   created,
	}
}

func TestStoreCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	t.Run("作成者がCREATORとして登録されること", func(t *testing.T) {
		t.Parallel()

		store := NewStore(openTestDB(t))
		creator := uuid.NewString()
		p := newTestProject("alpha", now)
		if err := store.Create(ctx, p, creator); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		got, err := store.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got != p {
			t.Errorf("Get() = %+v, want %+v", got, p)
		}
		role, err := store.MemberRole(ctx, p.ID, creator)
		if err != nil || role != RoleCreator {
			t.Errorf("MemberRole() = %q, %v, want %q", role, err, RoleCreator)
		}
	})

	t.Run("同名のプロジェクトはErrDuplicateNameを返すこと", func(t *testing.T) {
		t.Parallel()

		store := NewStore(openTestDB(t))
		if err := store.Create(ctx, newTestProject("dup", now), uuid.NewString()); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		err := store.Create(ctx, newTestProject("dup", now), uuid.NewString())
		if !errors.Is(err, ErrDuplicateName) {
			t.Errorf("err = %v, want %v", err, ErrDuplicateName)
		}
	})

	t.Run("存在しないプロジェクトはErrNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		store := NewStore(openTestDB(t))
		if _, err := store.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestStoreMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	t.Run("追加と論理削除が一覧に反映されること", func(t *testing.T) {
		t.Parallel()

		store := NewStore(openTestDB(t))
		creator, member := uuid.NewString(), uuid.NewString()
		p := newTestProject("beta", now)
		if err := store.Create(ctx, p, creator); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if err := store.AddMember(ctx, p.ID, member, now.Add(time.Minute)); err != nil {
			t.Fatalf("AddMember()でエラーが発生: %v", err)
		}

		members, err := store.Members(ctx, p.ID)
		if err != nil {
			t.Fatalf("Members()でエラーが発生: %v", err)
		}
		if len(members) != 2 || members[0].UserID != creator || members[1].UserID != member || members[1].ProjectRole != RoleMember {
			t.Errorf("Members() = %+v", members)
		}

		if err := store.RemoveMember(ctx, p.ID, member, now.Add(time.Hour)); err != nil {
			t.Fatalf("RemoveMember()でエラーが発生: %v", err)
		}
		if _, err := store.MemberRole(ctx, p.ID, member); !errors.Is(err, ErrNotFound) {
			t.Errorf("外したメンバーのMemberRole() err = %v, want %v", err, ErrNotFound)
		}
		if err := store.RemoveMember(ctx, p.ID, member, now.Add(time.Hour)); !errors.Is(err, ErrNotFound) {
			t.Errorf("2回目のRemoveMember() err = %v, want %v", err, ErrNotFound)
		}
		list, err := store.ListByUser(ctx, member)
		if err != nil || len(list) != 0 {
			t.Errorf("ListByUser() = %+v, %v, want empty", list, err)
		}
	})

	t.Run("外されたユーザーを再追加できること", func(t *testing.T) {
		t.Parallel()

		store := NewStore(openTestDB(t))
		member := uuid.NewString()
		p := newTestProject("gamma", now)
		if err := store.Create(ctx, p, uuid.NewString()); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		_ = store.AddMember(ctx, p.ID, member, now)
		_ = store.RemoveMember(ctx, p.ID, member, now.Add(time.Minute))
		if err := store.AddMember(ctx, p.ID, member, now.Add(time.Hour)); err != nil {
			t.Fatalf("再追加でエラーが発生: %v", err)
		}

		list, err := store.ListByUser(ctx, member)
		if err != nil {
			t.Fatalf("ListByUser()でエラーが発生: %v", err)
		}
		if len(list) != 1 || !list[0].JoinedAt.Equal(now.Add(time.Hour)) {
			t.Errorf("ListByUser() = %+v", list)
		}
	})

	t.Run("一覧は参加日時の新しい順であること", func(t *testing.T) {
		t.Parallel()

		store := NewStore(openTestDB(t))
		user := uuid.NewString()
		older := newTestProject("older", now)
		newer := newTestProject("newer", now.Add(24*time.Hour))
		for _, p := range []Project{older, newer} {
			if err := store.Create(ctx, p, user); err != nil {
				t.Fatalf("Create()でエラーが発生: %v", err)
			}
		}

		list, err := store.ListByUser(ctx, user)
		if err != nil {
			t.Fatalf("ListByUser()でエラーが発生: %v", err)
		}
		if len(list) != 2 || list[0].ProjectID != newer.ID || list[1].ProjectID != older.ID {
			t.Errorf("ListByUser() = %+v", list)
		}
	})
}

func TestStoreInvitation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	// setup はプロジェクトと招待トークンを1件用意する。
	setup := func(t *testing.T) (*Store, Invitation) {
		t.Helper()

		store := NewStore(openTestDB(t))
		p := newTestProject("invite", now)
		if err := store.Create(ctx, p, uuid.NewString()); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		inv := Invitation{Token: uuid.NewString(), ProjectID: p.ID, UserID: uuid.NewString(), ExpiresAt: now.Add(time.Hour)}
		if err := store.CreateInvitation(ctx, inv, nil); err != nil {
			t.Fatalf("CreateInvitation()でエラーが発生: %v", err)
		}
		return store, inv
	}

	t.Run("受け入れるとMEMBERとして追加され、トークンは再利用できないこと", func(t *testing.T) {
		t.Parallel()

		store, inv := setup(t)
		got, err := store.AcceptInvitation(ctx, inv.Token, now.Add(time.Minute))
		if err != nil {
			t.Fatalf("AcceptInvitation()でエラーが発生: %v", err)
		}
		if got.ProjectID != inv.ProjectID || got.UserID != inv.UserID {
			t.Errorf("AcceptInvitation() = %+v, want %+v", got, inv)
		}
		role, err := store.MemberRole(ctx, inv.ProjectID, inv.UserID)
		if err != nil || role != RoleMember {
			t.Errorf("MemberRole() = %q, %v, want %q", role, err, RoleMember)
		}

		if _, err := store.AcceptInvitation(ctx, inv.Token, now.Add(time.Minute)); !errors.Is(err, ErrInvitationNotFound) {
			t.Errorf("2回目のAcceptInvitation()のエラー = %v, want %v", err, ErrInvitationNotFound)
		}
	})

	t.Run("期限切れのトークンはErrInvitationNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		store, inv := setup(t)
		if _, err := store.AcceptInvitation(ctx, inv.Token, inv.ExpiresAt); !errors.Is(err, ErrInvitationNotFound) {
			t.Errorf("AcceptInvitation()のエラー = %v, want %v", err, ErrInvitationNotFound)
		}
		if _, err := store.MemberRole(ctx, inv.ProjectID, inv.UserID); !errors.Is(err, ErrNotFound) {
			t.Errorf("MemberRole()のエラー = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("未知のトークンはErrInvitationNotFoundを返すこと", func(t *testing.T) {
		t.Parallel()

		store, _ := setup(t)
		if _, err := store.AcceptInvitation(ctx, uuid.NewString(), now); !errors.Is(err, ErrInvitationNotFound) {
			t.Errorf("AcceptInvitation()のエラー = %v, want %v", err, ErrInvitationNotFound)
		}
	})

	t.Run("beforeCommitが失敗した場合は保存しないこと", func(t *testing.T) {
		t.Parallel()

		store, inv := setup(t)
		failed := errors.New("queue down")
		next := Invitation{Token: uuid.NewString(), ProjectID: inv.ProjectID, UserID: uuid.NewString(), ExpiresAt: now.Add(time.Hour)}
		err := store.CreateInvitation(ctx, next, func(context.Context) error { return failed })
		if !errors.Is(err, failed) {
			t.Fatalf("CreateInvitation()のエラー = %v, want %v", err, failed)
		}
		if _, err := store.AcceptInvitation(ctx, next.Token, now); !errors.Is(err, ErrInvitationNotFound) {
			t.Errorf("AcceptInvitation()のエラー = %v, want %v", err, ErrInvitationNotFound)
		}
	})

	t.Run("存在しないプロジェクトへの招待は保存できないこと", func(t *testing.T) {
		t.Parallel()

		store, _ := setup(t)
		inv := Invitation{Token: uuid.NewString(), ProjectID: uuid.NewString(), UserID: uuid.NewString(), ExpiresAt: now.Add(time.Hour)}
		if err := store.CreateInvitation(ctx, inv, nil); err == nil {
			t.Error("CreateInvitation()がエラーを返さない")
		}
	})
}
