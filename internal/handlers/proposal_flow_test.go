package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"proposepress/internal/models"
	"proposepress/internal/proposal"
)

func putProposal(t *testing.T, env *testEnv, item *models.Content, u *models.User, value string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("proposed_date", value)
	req := httptest.NewRequest(http.MethodPut, "/admin/content/"+item.ID.String()+"/proposed-date", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req = withChiURLParamAndSession(req, "id", item.ID.String(), sessionFor(u))

	rec := httptest.NewRecorder()
	env.Admin.ProposedDateUpdate(rec, req)
	return rec
}

func TestProposedDatePanel_VisibleToContributor(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	post := createTestPost(t, env, contributor.ID, "Panel", "panel-"+uuid.New().String()[:8])

	req := httptest.NewRequest(http.MethodGet, "/admin/content/"+post.ID.String()+"/proposed-date", nil)
	req = withChiURLParamAndSession(req, "id", post.ID.String(), sessionFor(contributor))
	rec := httptest.NewRecorder()
	env.Admin.ProposedDatePanel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("panel: got status %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="proposed_date"`) {
		t.Error("contributor should see the proposal input")
	}
	if !strings.Contains(body, proposal.Immediately) {
		t.Errorf("label should read %q without a proposal, got: %s", proposal.Immediately, body)
	}
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("panel should render as a fragment")
	}
	if !strings.Contains(body, "24-hour clock") {
		t.Error("panel should name the clock to type")
	}
}

func TestPostEdit_EditorSeesProposalData(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	editor := testUser(t, env, models.RoleEditor)
	post := createTestPost(t, env, contributor.ID, "Has Proposal", "has-proposal-"+uuid.New().String()[:8])
	if err := env.MetaStore.Set(post.ID, proposal.MetaKey, "2020-06-06 12:07:34"); err != nil {
		t.Fatalf("set proposal: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/posts/"+post.ID.String(), nil)
	req = withChiURLParamAndSession(req, "id", post.ID.String(), sessionFor(editor))
	rec := httptest.NewRecorder()
	env.Admin.PostEdit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("edit: got status %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`data-proposed="2020-06-06 12:07:34"`,
		`data-item-floating="true"`,
		`data-floating-statuses="auto-draft draft pending"`,
		`data-clock="24"`,
		"Proposed date:",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("editor form should contain %q", want)
		}
	}
	if strings.Contains(body, `name="proposed_date"`) {
		t.Error("editors should not get the proposal input")
	}
}

func TestProposedDatePanel_HiddenFromEditor(t *testing.T) {
	env := newTestEnv(t)

	editor := testUser(t, env, models.RoleEditor)
	post := createTestPost(t, env, editor.ID, "Editor Panel", "editor-panel-"+uuid.New().String()[:8])

	req := httptest.NewRequest(http.MethodGet, "/admin/content/"+post.ID.String()+"/proposed-date", nil)
	req = withChiURLParamAndSession(req, "id", post.ID.String(), sessionFor(editor))
	rec := httptest.NewRecorder()
	env.Admin.ProposedDatePanel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("panel: got status %d, want %d", rec.Code, http.StatusOK)
	}
	if strings.Contains(rec.Body.String(), `name="proposed_date"`) {
		t.Error("users who can publish should not see the proposal input")
	}
}

func TestProposedDateUpdate_StoresSanitizedValue(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	post := createTestPost(t, env, contributor.ID, "Propose", "propose-"+uuid.New().String()[:8])

	rec := putProposal(t, env, post, contributor, "<b>2020-06-06</b> %%%AB 10:25:56 %A%A")
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got status %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	stored, ok, err := env.MetaStore.Get(post.ID, proposal.MetaKey)
	if err != nil || !ok {
		t.Fatalf("proposal not stored: ok=%v err=%v", ok, err)
	}
	if stored != "2020-06-06 10:25:56" {
		t.Errorf("stored = %q, want 2020-06-06 10:25:56", stored)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2020-06-06 10:25") {
		t.Errorf("panel label should show the proposal, got: %s", body)
	}
	if !strings.Contains(body, `value="2020-06-06T10:25"`) {
		t.Errorf("panel input should carry the proposal, got: %s", body)
	}
}

func TestProposedDateUpdate_GarbageStoresEmpty(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	post := createTestPost(t, env, contributor.ID, "Garbage", "garbage-"+uuid.New().String()[:8])

	rec := putProposal(t, env, post, contributor, "not a date at all")
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got status %d, want %d", rec.Code, http.StatusOK)
	}
	if stored, _, _ := env.MetaStore.Get(post.ID, proposal.MetaKey); stored != "" {
		t.Errorf("stored = %q, want empty", stored)
	}
	if !strings.Contains(rec.Body.String(), proposal.Immediately) {
		t.Error("label should fall back to Immediately")
	}
}

func TestProposedDateUpdate_OthersPost_Returns403(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	post := createTestPost(t, env, testAuthorID(t, env.DB), "Foreign", "foreign-"+uuid.New().String()[:8])

	rec := putProposal(t, env, post, contributor, "2020-06-06 10:00")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("update others' post: got status %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestProposalPromotedWhenEditorPublishes(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	editor := testUser(t, env, models.RoleEditor)
	post := createTestPost(t, env, contributor.ID, "Promote Me", "promote-"+uuid.New().String()[:8])

	if rec := putProposal(t, env, post, contributor, "2020-06-06 12:07:34"); rec.Code != http.StatusOK {
		t.Fatalf("propose: got status %d", rec.Code)
	}

	// The editor publishes with the form as rendered: no date typed in.
	form := url.Values{}
	form.Set("title", post.Title)
	form.Set("slug", post.Slug)
	form.Set("body", post.Body)
	form.Set("status", "publish")
	form.Set("date", "")
	req := postForm("/admin/posts/"+post.ID.String(), form)
	req = withChiURLParamAndSession(req, "id", post.ID.String(), sessionFor(editor))

	rec := httptest.NewRecorder()
	env.Admin.PostUpdate(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("publish: got status %d, want %d; body: %s", rec.Code, http.StatusSeeOther, rec.Body.String())
	}

	saved, err := env.ContentStore.FindByID(post.ID)
	if err != nil || saved == nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got := saved.LocalDate(); got != "2020-06-06 12:07:34" {
		t.Errorf("date = %q, want the proposal", got)
	}
	if saved.DateGMT == nil {
		t.Fatal("date_gmt should be set")
	}
	if saved.Status != models.ContentStatusPublish {
		t.Errorf("status = %q, want publish", saved.Status)
	}
	if _, ok, _ := env.MetaStore.Get(post.ID, proposal.MetaKey); ok {
		t.Error("proposal should be deleted once applied")
	}
}

func TestProposalKeptWhenSavedAsDraft(t *testing.T) {
	env := newTestEnv(t)

	contributor := testUser(t, env, models.RoleContributor)
	editor := testUser(t, env, models.RoleEditor)
	post := createTestPost(t, env, contributor.ID, "Stay Draft", "stay-draft-"+uuid.New().String()[:8])

	if rec := putProposal(t, env, post, contributor, "2020-06-06 12:07:34"); rec.Code != http.StatusOK {
		t.Fatalf("propose: got status %d", rec.Code)
	}

	form := url.Values{}
	form.Set("title", "Stay Draft edited")
	form.Set("slug", post.Slug)
	form.Set("body", post.Body)
	form.Set("status", "draft")
	req := postForm("/admin/posts/"+post.ID.String(), form)
	req = withChiURLParamAndSession(req, "id", post.ID.String(), sessionFor(editor))

	rec := httptest.NewRecorder()
	env.Admin.PostUpdate(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("save: got status %d, want %d", rec.Code, http.StatusSeeOther)
	}

	saved, _ := env.ContentStore.FindByID(post.ID)
	if saved.DateGMT != nil {
		t.Error("a draft save should keep the date floating")
	}
	if stored, ok, _ := env.MetaStore.Get(post.ID, proposal.MetaKey); !ok || stored != "2020-06-06 12:07:34" {
		t.Errorf("proposal = %q, %v; want it kept", stored, ok)
	}
}
