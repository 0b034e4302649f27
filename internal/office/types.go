// Package office is the simulation core: rooms, workers, tasks and the
// orchestrator that advances them in discrete ticks.
package office

import (
	"errors"
	"math/rand/v2"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
	StatusFailed     TaskStatus = "Failed"
)

type Role string

const (
	RoleIntern   Role = "Intern"
	RoleJunior   Role = "Junior"
	RoleSenior   Role = "Senior"
	RoleLead     Role = "Lead"
	RoleManager  Role = "Manager"
	RoleDirector Role = "Director"
	RoleSecurity Role = "Security Guard"
)

// Roles lists every role; regularRoles excludes security.
var (
	Roles        = []Role{RoleIntern, RoleJunior, RoleSenior, RoleLead, RoleManager, RoleDirector, RoleSecurity}
	regularRoles = []Role{RoleIntern, RoleJunior, RoleSenior, RoleLead, RoleManager, RoleDirector}
)

type Department string

const (
	DeptEngineering Department = "Engineering"
	DeptMarketing   Department = "Marketing"
	DeptManagement  Department = "Management"
	DeptHR          Department = "Human Resources"
	DeptSupport     Department = "Support"
)

var Departments = []Department{DeptEngineering, DeptMarketing, DeptManagement, DeptHR, DeptSupport}

type Personality string

const (
	Diligent  Personality = "Diligent"
	Lazy      Personality = "Lazy"
	Social    Personality = "Social"
	Introvert Personality = "Introvert"
	Chaotic   Personality = "Chaotic"
)

var Personalities = []Personality{Diligent, Lazy, Social, Introvert, Chaotic}

// trait holds the numeric effects of a personality. A zero trait changes
// nothing.
type trait struct {
	rateDelta    float64 // added to a task's base success rate
	arrivalDelta float64 // mood change on entering the office
	arrivalFloor float64 // lower bound applied with arrivalDelta
}

var traits = map[Personality]trait{
	Diligent: {rateDelta: 0.10, arrivalDelta: 0.10},
	Lazy:     {rateDelta: -0.10, arrivalDelta: -0.10, arrivalFloor: 0.30},
}

func (p Personality) trait() trait { return traits[p] }

type RoomType string

const (
	RoomOffice    RoomType = "Office"
	RoomMeeting   RoomType = "Meeting Room"
	RoomKitchen   RoomType = "Kitchen"
	RoomRestroom  RoomType = "Restroom"
	RoomCorridor  RoomType = "Corridor"
	RoomReception RoomType = "Reception"
)

// Rand is the random stream threaded through the simulation. *rand.Rand
// from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

const pcgStream = 0x9e3779b97f4a7c15

// NewRand returns a PCG-backed stream for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^pcgStream))
}

var (
	ErrUnknownScenario   = errors.New("unknown scenario")
	ErrRequirementsUnmet = errors.New("scenario requirements not met")
)

// intBetween draws uniformly from [lo, hi].
func intBetween(rng Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

// floatBetween draws uniformly from [lo, hi).
func floatBetween(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
