package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/pkg/analytics"
	"github.com/taskflowhq/taskflow/pkg/statemachine"
)

// CancellationReason is one of the fixed reasons offered in the cancel flow.
type CancellationReason string

const (
	ReasonTooExpensive    CancellationReason = "too_expensive"
	ReasonNotUsing        CancellationReason = "not_using"
	ReasonMissingFeatures CancellationReason = "missing_features"
	ReasonSwitching       CancellationReason = "switching"
	ReasonTemporary       CancellationReason = "temporary"
	ReasonOther           CancellationReason = "other"
)

// Valid reports whether r is a known cancellation reason.
func (r CancellationReason) Valid() bool {
	switch r {
	case ReasonTooExpensive, ReasonNotUsing, ReasonMissingFeatures,
		ReasonSwitching, ReasonTemporary, ReasonOther:
		return true
	}
	return false
}

// EligibleForOffer reports whether the reason triggers a retention offer.
func (r CancellationReason) EligibleForOffer() bool {
	switch r {
	case ReasonTooExpensive, ReasonNotUsing, ReasonTemporary:
		return true
	}
	return false
}

// RetentionOffer returns the reason-specific retention message, or false
// when the reason gets no offer.
func RetentionOffer(r CancellationReason, planName string) (string, bool) {
	switch r {
	case ReasonTooExpensive:
		return fmt.Sprintf("Get 50%% off your %s plan for the next 3 months.", planName), true
	case ReasonNotUsing:
		return "Switch to the Starter plan free for 2 months, then pick up where you left off.", true
	case ReasonTemporary:
		return "Pause your subscription for 3 months at no charge. Your data stays put.", true
	}
	return "", false
}

var (
	ErrNoReasonSelected = errors.New("a cancellation reason must be selected")
	ErrFlowStep         = errors.New("operation not allowed at this step of the cancellation flow")
)

// FlowStep is a step of the cancellation flow.
type FlowStep string

const (
	StepReason  FlowStep = "reason"
	StepOffer   FlowStep = "offer"
	StepConfirm FlowStep = "confirm"
)

// flow events
const (
	flowContinue statemachine.StringEvent = "continue"
	flowDecline  statemachine.StringEvent = "decline"
)

// Canceler applies a confirmed cancellation to the subscription record.
// *Service implements it.
type Canceler interface {
	Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error)
}

// CancellationFlow is the modal-scoped reason -> offer -> confirm sub-flow
// layered on top of the subscription lifecycle. Nothing it holds is
// persisted: closing the flow at any step discards the reason and feedback,
// and only a confirmed cancel touches the subscription record.
type CancellationFlow struct {
	mu       sync.Mutex
	machine  statemachine.StateMachine
	canceler Canceler
	tracker  analytics.Tracker
	userID   uuid.UUID
	planName string

	reason   CancellationReason
	feedback string
}

// NewCancellationFlow builds a flow for one user. planName feeds the
// retention offer copy.
func NewCancellationFlow(canceler Canceler, tracker analytics.Tracker, userID uuid.UUID, planName string) *CancellationFlow {
	if tracker == nil {
		tracker = analytics.Noop{}
	}

	f := &CancellationFlow{
		canceler: canceler,
		tracker:  tracker,
		userID:   userID,
		planName: planName,
	}

	offerEligible := func(ctx context.Context, _ statemachine.State, _ statemachine.Event, _ any) bool {
		return f.reason.EligibleForOffer()
	}

	// Guard-based branching: the offer transition is tried first; reasons
	// outside the offer set fall through to confirm.
	f.machine = statemachine.MustNew(statemachine.StringState(StepReason),
		statemachine.WithTransition(
			statemachine.StringState(StepReason), statemachine.StringState(StepOffer),
			flowContinue, statemachine.WithGuard(offerEligible)),
		statemachine.WithTransition(
			statemachine.StringState(StepReason), statemachine.StringState(StepConfirm),
			flowContinue),
		statemachine.WithTransition(
			statemachine.StringState(StepOffer), statemachine.StringState(StepConfirm),
			flowDecline),
	)

	return f
}

// Step returns the current flow step.
func (f *CancellationFlow) Step() FlowStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FlowStep(f.machine.Current().Name())
}

// SubmitReason records the selected reason plus optional feedback and
// advances to the offer step (offer-eligible reasons) or straight to
// confirm. Submitting without a reason is rejected.
func (f *CancellationFlow) SubmitReason(ctx context.Context, reason CancellationReason, feedback string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !reason.Valid() {
		return ErrNoReasonSelected
	}

	f.reason = reason
	f.feedback = feedback

	if err := f.machine.Fire(ctx, flowContinue, nil); err != nil {
		f.reason = ""
		f.feedback = ""
		return fmt.Errorf("%w: %w", ErrFlowStep, err)
	}

	f.tracker.Track(ctx, f.userID, analytics.EventCancellationInitiated, analytics.Properties{
		"reason":   string(reason),
		"feedback": feedback,
	})
	return nil
}

// Offer returns the retention message for the submitted reason. Only valid
// at the offer step.
func (f *CancellationFlow) Offer() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if FlowStep(f.machine.Current().Name()) != StepOffer {
		return "", false
	}
	return RetentionOffer(f.reason, f.planName)
}

// AcceptOffer takes the retention offer: the flow closes, the subscription
// is untouched, and a cancellation_prevented event is emitted.
func (f *CancellationFlow) AcceptOffer(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if FlowStep(f.machine.Current().Name()) != StepOffer {
		return ErrFlowStep
	}

	f.tracker.Track(ctx, f.userID, analytics.EventCancellationPrevented, analytics.Properties{
		"reason":        string(f.reason),
		"acceptedOffer": true,
	})
	f.resetLocked()
	return nil
}

// DeclineOffer advances from the offer step to the confirmation step.
func (f *CancellationFlow) DeclineOffer(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.machine.Fire(ctx, flowDecline, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrFlowStep, err)
	}
	return nil
}

// ConfirmCancel applies the cancellation through the lifecycle and closes
// the flow. Only valid at the confirm step.
func (f *CancellationFlow) ConfirmCancel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if FlowStep(f.machine.Current().Name()) != StepConfirm {
		return ErrFlowStep
	}

	if _, err := f.canceler.Cancel(ctx, f.userID); err != nil {
		return err
	}

	f.tracker.Track(ctx, f.userID, analytics.EventCancellationCompleted, analytics.Properties{
		"reason":   string(f.reason),
		"feedback": f.feedback,
	})
	f.resetLocked()
	return nil
}

// Close abandons the flow ("keep my subscription"). All flow-local state is
// discarded; the next invocation starts back at the reason step.
func (f *CancellationFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *CancellationFlow) resetLocked() {
	_ = f.machine.Reset()
	f.reason = ""
	f.feedback = ""
}
