package domain

// Kind names a family of managed entities sharing one lifecycle table.
type Kind string

const (
	KindAPI          Kind = "api"
	KindReview       Kind = "api_review"
	KindPlan         Kind = "plan"
	KindSubscription Kind = "subscription"
	KindApplication  Kind = "application"
	KindPage         Kind = "page"
	KindAlert        Kind = "alert"
	KindMembership   Kind = "membership"
)

// State is a lifecycle state. Values are only meaningful within a Kind.
type State string

// Action is the token that requests a transition.
type Action string

const (
	ActionStart        Action = "START"
	ActionStop         Action = "STOP"
	ActionArchive      Action = "ARCHIVE"
	ActionAskForReview Action = "ASK_FOR_REVIEW"
	ActionAcceptReview Action = "ACCEPT_REVIEW"
	ActionRejectReview Action = "REJECT_REVIEW"
	ActionResetReview  Action = "RESET_REVIEW"
	ActionPublish      Action = "PUBLISH"
	ActionDeprecate    Action = "DEPRECATE"
	ActionClose        Action = "CLOSE"
	ActionAccept       Action = "ACCEPT"
	ActionReject       Action = "REJECT"
	ActionPause        Action = "PAUSE"
	ActionResume       Action = "RESUME"
)

// Transition defines a valid state change: an action moves an entity from Src to Dst.
type Transition struct {
	Action Action
	Src    State
	Dst    State
}

// Lifecycle is the transition table of one entity kind.
type Lifecycle struct {
	Kind        Kind
	Transitions []Transition
	// Terminal states accept no action at all.
	Terminal []State
	// Reasons holds human-readable messages for well-known denials, keyed by
	// action then by the state the action was attempted from.
	Reasons map[Action]map[State]string
}

// IsTerminal reports whether s is a terminal state of the lifecycle.
func (l Lifecycle) IsTerminal(s State) bool {
	for _, t := range l.Terminal {
		if t == s {
			return true
		}
	}
	return false
}

// Reason returns the message explaining why action is refused from current.
func (l Lifecycle) Reason(action Action, current State) string {
	if byState, ok := l.Reasons[action]; ok {
		if msg, ok := byState[current]; ok {
			return msg
		}
	}
	return ""
}

// Lookup returns the destination of action from src, if the table has one.
func (l Lifecycle) Lookup(action Action, src State) (State, bool) {
	for _, t := range l.Transitions {
		if t.Action == action && t.Src == src {
			return t.Dst, true
		}
	}
	return "", false
}

// APILifecycle governs the runtime state of an API.
var APILifecycle = Lifecycle{
	Kind: KindAPI,
	Transitions: []Transition{
		{Action: ActionStart, Src: State(APIStateInitialized), Dst: State(APIStateStarted)},
		{Action: ActionStart, Src: State(APIStateStopped), Dst: State(APIStateStarted)},
		{Action: ActionStop, Src: State(APIStateStarted), Dst: State(APIStateStopped)},
		{Action: ActionArchive, Src: State(APIStateInitialized), Dst: State(APIStateArchived)},
		{Action: ActionArchive, Src: State(APIStateStopped), Dst: State(APIStateArchived)},
	},
	Terminal: []State{State(APIStateArchived)},
	Reasons: map[Action]map[State]string{
		ActionStart: {
			State(APIStateStarted):  "API is already started",
			State(APIStateArchived): "Deleted API can not be started",
		},
		ActionStop: {
			State(APIStateStopped):     "API is already stopped",
			State(APIStateInitialized): "API has never been started",
			State(APIStateArchived):    "Deleted API can not be stopped",
		},
		ActionArchive: {
			State(APIStateStarted):  "API must be stopped before being deleted",
			State(APIStateArchived): "API is already deleted",
		},
	},
}

// ReviewLifecycle governs the review workflow of an API.
var ReviewLifecycle = Lifecycle{
	Kind: KindReview,
	Transitions: []Transition{
		{Action: ActionAskForReview, Src: State(ReviewDraft), Dst: State(ReviewInReview)},
		{Action: ActionAskForReview, Src: State(ReviewRequestChanges), Dst: State(ReviewInReview)},
		{Action: ActionAcceptReview, Src: State(ReviewInReview), Dst: State(ReviewOK)},
		{Action: ActionRejectReview, Src: State(ReviewInReview), Dst: State(ReviewRequestChanges)},
		{Action: ActionResetReview, Src: State(ReviewOK), Dst: State(ReviewDraft)},
		{Action: ActionResetReview, Src: State(ReviewRequestChanges), Dst: State(ReviewDraft)},
		{Action: ActionResetReview, Src: State(ReviewInReview), Dst: State(ReviewDraft)},
	},
	Reasons: map[Action]map[State]string{
		ActionAskForReview: {
			State(ReviewInReview): "API is already in review",
			State(ReviewOK):       "API has already been reviewed",
		},
		ActionAcceptReview: {
			State(ReviewDraft):          "API is not in review",
			State(ReviewRequestChanges): "API is not in review",
			State(ReviewOK):             "API has already been reviewed",
		},
		ActionRejectReview: {
			State(ReviewDraft):          "API is not in review",
			State(ReviewRequestChanges): "API is not in review",
			State(ReviewOK):             "API has already been reviewed",
		},
	},
}

// PlanLifecycle governs plan publication.
var PlanLifecycle = Lifecycle{
	Kind: KindPlan,
	Transitions: []Transition{
		{Action: ActionPublish, Src: State(PlanStaging), Dst: State(PlanPublished)},
		{Action: ActionDeprecate, Src: State(PlanPublished), Dst: State(PlanDeprecated)},
		{Action: ActionClose, Src: State(PlanStaging), Dst: State(PlanClosed)},
		{Action: ActionClose, Src: State(PlanPublished), Dst: State(PlanClosed)},
		{Action: ActionClose, Src: State(PlanDeprecated), Dst: State(PlanClosed)},
	},
	Terminal: []State{State(PlanClosed)},
	Reasons: map[Action]map[State]string{
		ActionPublish: {
			State(PlanPublished):  "Plan is already published",
			State(PlanDeprecated): "Deprecated plan can not be published again",
			State(PlanClosed):     "Closed plan can not be published",
		},
		ActionDeprecate: {
			State(PlanStaging):    "Only a published plan can be deprecated",
			State(PlanDeprecated): "Plan is already deprecated",
			State(PlanClosed):     "Closed plan can not be deprecated",
		},
		ActionClose: {
			State(PlanClosed): "Plan is already closed",
		},
	},
}

// SubscriptionLifecycle governs subscription validation and status changes.
var SubscriptionLifecycle = Lifecycle{
	Kind: KindSubscription,
	Transitions: []Transition{
		{Action: ActionAccept, Src: State(SubscriptionPending), Dst: State(SubscriptionAccepted)},
		{Action: ActionReject, Src: State(SubscriptionPending), Dst: State(SubscriptionRejected)},
		{Action: ActionPause, Src: State(SubscriptionAccepted), Dst: State(SubscriptionPaused)},
		{Action: ActionResume, Src: State(SubscriptionPaused), Dst: State(SubscriptionAccepted)},
		{Action: ActionClose, Src: State(SubscriptionPending), Dst: State(SubscriptionClosed)},
		{Action: ActionClose, Src: State(SubscriptionAccepted), Dst: State(SubscriptionClosed)},
		{Action: ActionClose, Src: State(SubscriptionPaused), Dst: State(SubscriptionClosed)},
	},
	Terminal: []State{State(SubscriptionClosed), State(SubscriptionRejected)},
	Reasons: map[Action]map[State]string{
		ActionAccept: {
			State(SubscriptionAccepted): "Subscription has already been processed",
			State(SubscriptionPaused):   "Subscription has already been processed",
		},
		ActionReject: {
			State(SubscriptionAccepted): "Subscription has already been processed",
			State(SubscriptionPaused):   "Subscription has already been processed",
		},
		ActionPause: {
			State(SubscriptionPaused):  "Subscription is already paused",
			State(SubscriptionPending): "Only an accepted subscription can be paused",
		},
		ActionResume: {
			State(SubscriptionAccepted): "Subscription is not paused",
			State(SubscriptionPending):  "Subscription is not paused",
		},
	},
}

// ApplicationLifecycle governs application archival.
var ApplicationLifecycle = Lifecycle{
	Kind: KindApplication,
	Transitions: []Transition{
		{Action: ActionArchive, Src: State(ApplicationActive), Dst: State(ApplicationArchived)},
	},
	Terminal: []State{State(ApplicationArchived)},
}

// Lifecycles lists every transition table, keyed by kind.
var Lifecycles = map[Kind]Lifecycle{
	KindAPI:          APILifecycle,
	KindReview:       ReviewLifecycle,
	KindPlan:         PlanLifecycle,
	KindSubscription: SubscriptionLifecycle,
	KindApplication:  ApplicationLifecycle,
}
