package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskflowhq/taskflow/pkg/analytics"
)

// BannerKind identifies a billing warning surface.
type BannerKind string

const (
	BannerTrialCountdown BannerKind = "trial_countdown"
	BannerTrialExpired   BannerKind = "trial_expired"
	BannerPaymentFailed  BannerKind = "payment_failed"
	BannerCancelPending  BannerKind = "cancel_pending"
)

// Banner is a user-facing billing notice derived from the subscription record.
type Banner struct {
	Kind        BannerKind
	Dismissible bool      // only the trial countdown can be dismissed
	Blocking    bool      // expired trial and failed payment demand action
	DaysLeft    int       // trial countdown only
	RetryCount  int       // payment failure only, capped for display
	AccessUntil time.Time // cancel-pending badge only
}

// RetryDisplay renders the "(attempt N/3)" suffix for the past-due banner.
func (b Banner) RetryDisplay() string {
	return fmt.Sprintf("attempt %d/%d", min(b.RetryCount, MaxDisplayedRetries), MaxDisplayedRetries)
}

// BannerSession holds ephemeral, session-scoped banner state: which banners
// the user dismissed and which analytics events were already emitted this
// session. It is never persisted into the subscription record; a fresh
// session re-derives everything from the record.
type BannerSession struct {
	mu        sync.Mutex
	dismissed map[BannerKind]bool
	emitted   map[analytics.EventName]bool
}

func NewBannerSession() *BannerSession {
	return &BannerSession{
		dismissed: make(map[BannerKind]bool),
		emitted:   make(map[analytics.EventName]bool),
	}
}

// Dismiss hides a banner for the rest of the session. Non-dismissible
// banners ignore it.
func (s *BannerSession) Dismiss(kind BannerKind) {
	if kind != BannerTrialCountdown {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed[kind] = true
}

func (s *BannerSession) isDismissed(kind BannerKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissed[kind]
}

// emitOnce reports whether the event was not yet emitted this session and
// marks it emitted.
func (s *BannerSession) emitOnce(name analytics.EventName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitted[name] {
		return false
	}
	s.emitted[name] = true
	return true
}

// NoticePolicy derives billing banners from a subscription record. It is a
// pure read-side projection: the only side effect is the analytics event it
// emits once per session observation.
type NoticePolicy struct {
	tracker analytics.Tracker
}

func NewNoticePolicy(tracker analytics.Tracker) *NoticePolicy {
	if tracker == nil {
		tracker = analytics.Noop{}
	}
	return &NoticePolicy{tracker: tracker}
}

// Evaluate returns the banner for the stored record at now, or nil when no
// warning applies. Evaluation works on the stored state, not the effective
// one, so an expired trial that has not been corrected yet still surfaces
// the expired banner.
func (p *NoticePolicy) Evaluate(ctx context.Context, sub *Subscription, now time.Time, sess *BannerSession) *Banner {
	if sub == nil {
		return nil
	}
	if sess == nil {
		sess = NewBannerSession()
	}

	switch st := sub.State.(type) {
	case Trialing:
		days, _ := sub.TrialDaysRemainingAt(now)
		if days <= 0 {
			if sess.emitOnce(analytics.EventTrialExpired) {
				p.tracker.Track(ctx, sub.UserID, analytics.EventTrialExpired, nil)
			}
			return &Banner{Kind: BannerTrialExpired, Blocking: true}
		}
		if days <= ExpiringSoonDays {
			if sess.emitOnce(analytics.EventTrialExpiringSoon) {
				p.tracker.Track(ctx, sub.UserID, analytics.EventTrialExpiringSoon, analytics.Properties{
					"daysRemaining": days,
				})
			}
			if sess.isDismissed(BannerTrialCountdown) {
				return nil
			}
			return &Banner{Kind: BannerTrialCountdown, Dismissible: true, DaysLeft: days}
		}
		return nil

	case PastDue:
		if sess.emitOnce(analytics.EventPaymentFailed) {
			p.tracker.Track(ctx, sub.UserID, analytics.EventPaymentFailed, analytics.Properties{
				"retryCount": st.RetryCount,
				"failedAt":   st.FailedAt,
			})
		}
		return &Banner{Kind: BannerPaymentFailed, Blocking: true, RetryCount: st.RetryCount}

	case Canceling:
		// Informational badge only, no event and no blocking.
		return &Banner{Kind: BannerCancelPending, AccessUntil: sub.CurrentPeriodEnd}

	default:
		return nil
	}
}
