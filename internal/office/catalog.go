package office

import "strings"

const (
	EventWaterSpill    = "Water spill"
	EventDroppedPapers = "Dropped papers"
	EventCoffeeSpill   = "Coffee spill"
)

// DefaultCatalog is the pool the task generator draws from.
var DefaultCatalog = []TaskTemplate{
	{Name: "Review documents", Description: "Review important project documents", Duration: 60, SuccessRate: 0.8},
	{Name: "Team meeting", Description: "Attend team sync meeting", Duration: 45, SuccessRate: 0.9},
	{Name: "Send emails", Description: "Send important emails to clients", Duration: 30, SuccessRate: 0.85},
	{Name: "Phone call", Description: "Make an important phone call", Duration: 15, SuccessRate: 0.75},
	{Name: "Coffee break", Description: "Take a coffee break", Duration: 15, SuccessRate: 0.95},
	{Name: "Fill water glass", Description: "Fill glass from water cooler", Duration: 5, SuccessRate: 0.7, FailEvent: EventWaterSpill},
	{Name: "Carry documents", Description: "Carry stack of documents to another room", Duration: 10, SuccessRate: 0.6, FailEvent: EventDroppedPapers},
	{Name: "Bring coffee", Description: "Bring coffee to colleague", Duration: 8, SuccessRate: 0.65, FailEvent: EventCoffeeSpill},
	{Name: "Code review", Description: "Review code for the project", Duration: 60, SuccessRate: 0.7, RequiredRole: RoleSenior},
	{Name: "Interview candidate", Description: "Interview job candidate", Duration: 90, SuccessRate: 0.8, RequiredRole: RoleManager},
}

// cleanups maps a failure event to the task that clears it up.
var cleanups = map[string]TaskTemplate{
	EventWaterSpill:    {Name: "Clean spill", Description: "Clean up water spill", Duration: 15, SuccessRate: 0.9},
	EventDroppedPapers: {Name: "Collect papers", Description: "Collect dropped papers", Duration: 10, SuccessRate: 0.95},
	EventCoffeeSpill:   {Name: "Clean coffee", Description: "Clean up coffee spill", Duration: 20, SuccessRate: 0.85},
}

// CleanupFor returns the cleanup template for a failure event.
func CleanupFor(event string) (TaskTemplate, bool) {
	tpl, ok := cleanups[event]
	return tpl, ok
}

var destinations = map[string]RoomType{
	"Coffee break":        RoomKitchen,
	"Team meeting":        RoomMeeting,
	"Interview candidate": RoomMeeting,
}

// DestinationFor maps a task name to the room type the worker walks to.
func DestinationFor(name string) RoomType {
	if t, ok := destinations[name]; ok {
		return t
	}
	if strings.HasPrefix(name, "Fill water") {
		return RoomKitchen
	}
	return RoomOffice
}
