package bot

// Action is a button press. The set is closed; anything else parses to
// ActionUnknown.
type Action int

const (
	ActionUnknown Action = iota
	ActionEnterSpendings
	ActionEnterAnalytics
	ActionReturnToMenu
	ActionCancelSpendings
	ActionConfirm
	ActionMonthReport
	ActionCategoryReport
	ActionCancelAnalytics
)

// callback data carried by inline buttons
var actionData = map[Action]string{
	ActionEnterSpendings:  "spendings",
	ActionEnterAnalytics:  "analytics",
	ActionReturnToMenu:    "returnToMenu",
	ActionCancelSpendings: "cancel_spendings",
	ActionConfirm:         "confirm",
	ActionMonthReport:     "spendingsLastMonth",
	ActionCategoryReport:  "spendingsByCategory",
	ActionCancelAnalytics: "cancel_analytics",
}

var actionsByData = func() map[string]Action {
	m := make(map[string]Action, len(actionData))
	for a, d := range actionData {
		m[d] = a
	}
	return m
}()

// ParseAction maps button callback data to an Action.
func ParseAction(data string) Action {
	if a, ok := actionsByData[data]; ok {
		return a
	}
	return ActionUnknown
}

// Data returns the callback data of a.
func (a Action) Data() string {
	return actionData[a]
}

func (a Action) String() string {
	if d, ok := actionData[a]; ok {
		return d
	}
	return "unknown"
}
