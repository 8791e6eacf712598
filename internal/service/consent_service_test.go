package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/weaveui/dataset-manager/internal/auth"
	"github.com/weaveui/dataset-manager/internal/config"
	"github.com/weaveui/dataset-manager/internal/domain"
	"github.com/weaveui/dataset-manager/internal/events"
	appmail "github.com/weaveui/dataset-manager/internal/mail"
	"github.com/weaveui/dataset-manager/internal/repository"
)

type consentFixture struct {
	cfg    *config.Config
	repos  repository.Set
	mailer *recordingMailer
	svc    *ConsentService
}

func newConsentFixture(t *testing.T, failKinds ...string) *consentFixture {
	t.Helper()
	cfg := newTestConfig(t)
	repos := newTestRepos(t)
	mailer := &recordingMailer{failKinds: map[string]bool{}}
	for _, k := range failKinds {
		mailer.failKinds[k] = true
	}
	templates := newTestTemplates(t)
	composer := appmail.NewComposer(cfg.Sender, cfg.SMTP)
	dispatcher := events.NewInMemoryDispatcher(nil)
	NewNotificationService(dispatcher, mailer, composer, templates, cfg.Sender, nil).RegisterHandlers()

	svc := NewConsentService(cfg, ConsentDependencies{
		Codec:       newTestCodec(t, cfg),
		EntryRepo:   repos.Entries,
		ConsentRepo: repos.Consents,
		Mailer:      mailer,
		Composer:    composer,
		Templates:   templates,
		Dispatcher:  dispatcher,
	})
	return &consentFixture{cfg: cfg, repos: repos, mailer: mailer, svc: svc}
}

func TestSendRequestMailsLinksAndMarksSent(t *testing.T) {
	ctx := context.Background()
	f := newConsentFixture(t)

	res, err := f.svc.SendRequest(ctx, SendRequestInput{
		EntryID:     "001",
		To:          "Jane <creator@example.com>",
		Title:       "Banking dashboard",
		URL:         "https://dribbble.com/shots/1",
		CreatorName: "Jane",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.To != "creator@example.com" {
		t.Errorf("recipient = %q", res.To)
	}
	if !strings.HasPrefix(res.Links.ApproveURL, "https://consent.example.org/consent/approve?token=") {
		t.Errorf("approve url = %q", res.Links.ApproveURL)
	}

	msgs := f.mailer.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	msg := msgs[0]
	if diff := cmp.Diff([]string{"creator@example.com"}, msg.To); diff != "" {
		t.Errorf("recipients (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(msg.Subject, "[WeaveUI] ") {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.Headers["X-WeaveUI-Entry"] != "001" {
		t.Errorf("entry header = %q", msg.Headers["X-WeaveUI-Entry"])
	}
	for _, link := range []string{res.Links.PageURL, res.Links.ApproveURL, res.Links.DeclineURL} {
		if !strings.Contains(msg.Text, link) {
			t.Errorf("text body is missing %s", link)
		}
	}

	consent, err := f.repos.Consents.GetByEntryID(ctx, "001")
	if err != nil {
		t.Fatalf("consent: %v", err)
	}
	if consent.SentAt == nil || consent.State() != domain.ConsentPending {
		t.Errorf("expected a pending consent with a send time, got %+v", consent)
	}
}

func TestSendRequestDeliveryFailureLeavesConsentUnsent(t *testing.T) {
	ctx := context.Background()
	f := newConsentFixture(t, appmail.KindConsent)

	_, err := f.svc.SendRequest(ctx, SendRequestInput{EntryID: "001", To: "creator@example.com"})
	if got := errorCode(t, err); got != "UPSTREAM_UNAVAILABLE" {
		t.Fatalf("code = %s", got)
	}
	if _, err := f.repos.Consents.GetByEntryID(ctx, "001"); !repository.IsNotFound(err) {
		t.Fatalf("expected no consent row, got %v", err)
	}
}

func TestSendRequestValidation(t *testing.T) {
	f := newConsentFixture(t)
	tests := []struct {
		name string
		in   SendRequestInput
	}{
		{name: "path traversal id", in: SendRequestInput{EntryID: "../etc", To: "a@b.c"}},
		{name: "empty id", in: SendRequestInput{To: "a@b.c"}},
		{name: "bad address", in: SendRequestInput{EntryID: "001", To: "not an address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendRequest(context.Background(), tt.in)
			if got := errorCode(t, err); got != "VALIDATION_FAILED" {
				t.Fatalf("code = %s", got)
			}
		})
	}
}

func TestDecideRecordsLatestDecisionAndSendsReceipts(t *testing.T) {
	ctx := context.Background()
	f := newConsentFixture(t)
	issued, err := f.svc.IssueToken("001", "creator@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	steps := []struct {
		granted  bool
		evidence string
		state    domain.ConsentState
		subject  string
	}{
		{granted: true, evidence: domain.EvidenceWebApprove, state: domain.ConsentGranted, subject: "[WeaveUI] Your consent decision was recorded"},
		{granted: false, evidence: domain.EvidenceWebDecline, state: domain.ConsentDeclined, subject: "[WeaveUI] Your decline was recorded"},
	}
	for i, step := range steps {
		res, err := f.svc.Decide(ctx, issued.Token, step.granted, "web")
		if err != nil {
			t.Fatalf("decide #%d: %v", i, err)
		}
		if res.Evidence != step.evidence || res.Scope != "all_shots" {
			t.Errorf("decision #%d = %+v", i, res)
		}

		consent, err := f.repos.Consents.GetByEntryID(ctx, "001")
		if err != nil {
			t.Fatalf("consent: %v", err)
		}
		if consent.State() != step.state || consent.Evidence != step.evidence {
			t.Errorf("stored consent #%d = %+v", i, consent)
		}

		msgs := f.mailer.messages()
		if len(msgs) != i+1 {
			t.Fatalf("expected %d receipts, got %d", i+1, len(msgs))
		}
		receipt := msgs[i]
		if receipt.Subject != step.subject || receipt.To[0] != "creator@example.com" || receipt.Headers["X-WeaveUI-Type"] != appmail.KindReceipt {
			t.Errorf("receipt #%d = %+v", i, receipt)
		}
	}
}

func TestDecideSucceedsWhenReceiptFails(t *testing.T) {
	ctx := context.Background()
	f := newConsentFixture(t, appmail.KindReceipt)
	issued, err := f.svc.IssueToken("001", "creator@example.com", "selected_shots")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, err := f.svc.Decide(ctx, issued.Token, true, "web")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if res.Scope != "selected_shots" {
		t.Errorf("scope = %q", res.Scope)
	}
	consent, err := f.repos.Consents.GetByEntryID(ctx, "001")
	if err != nil || !consent.IsGranted() {
		t.Fatalf("expected granted consent, got %+v, %v", consent, err)
	}
	if len(f.mailer.messages()) != 0 {
		t.Errorf("receipt should have been rejected")
	}
}

func TestDecideRejectsInvalidTokensWithoutWriting(t *testing.T) {
	ctx := context.Background()
	f := newConsentFixture(t)
	issued, err := f.svc.IssueToken("001", "creator@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	otherCfg := newTestConfig(t)
	otherCfg.Consent.Secret = "other-secret"
	forged, err := newTestCodec(t, otherCfg).Sign(issued.Payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expiredSvc := *f.svc
	expiredSvc.codec = f.svc.codec.WithClock(func() time.Time { return time.Now().Add(15 * 24 * time.Hour) })

	tests := []struct {
		name  string
		svc   *ConsentService
		token string
		want  error
	}{
		{name: "garbage", svc: f.svc, token: "garbage", want: auth.ErrMalformedToken},
		{name: "foreign signature", svc: f.svc, token: forged, want: auth.ErrBadSignature},
		{name: "expired", svc: &expiredSvc, token: issued.Token, want: auth.ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Decide(ctx, tt.token, true, "web")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			tokenErr, ok := IsTokenError(err)
			if !ok || TokenFailureMessage(tokenErr) == "" {
				t.Fatalf("expected a token error, got %v", err)
			}
		})
	}

	if _, err := f.repos.Entries.GetByID(ctx, "001"); !repository.IsNotFound(err) {
		t.Fatalf("invalid tokens must not create entries, got %v", err)
	}
	if len(f.mailer.messages()) != 0 {
		t.Errorf("no receipts expected")
	}
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	f := newConsentFixture(t)
	issued, err := f.svc.IssueToken("007", "creator@example.com", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	view, err := f.svc.Inspect(ctx, issued.Token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if view.Entry != nil || view.Consent != nil {
		t.Errorf("expected no stored state, got %+v", view)
	}
	if view.Payload.EntryID != "007" || view.Links.DeclineURL != issued.Links.DeclineURL {
		t.Errorf("view = %+v", view)
	}

	if _, err := f.svc.Decide(ctx, issued.Token, true, "web"); err != nil {
		t.Fatalf("decide: %v", err)
	}
	view, err = f.svc.Inspect(ctx, issued.Token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if view.Entry == nil || !view.Consent.IsGranted() {
		t.Errorf("expected the recorded decision, got %+v", view)
	}
}
