package planner

import "github.com/kilianp07/showplan/core/resources"

// TaskStatus is the execution state of a task.
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusInProgress  TaskStatus = "in_progress"
	StatusDone        TaskStatus = "done"
	StatusInterrupted TaskStatus = "interrupted"
	StatusCancelled   TaskStatus = "cancelled"
)

// BreakKind marks resource breaks.
type BreakKind string

const (
	BreakNone          BreakKind = ""
	BreakSpaceMeal     BreakKind = "space_meal"
	BreakItinerantMeal BreakKind = "itinerant_meal"
)

// LockKind is the kind of a user lock.
type LockKind string

const (
	LockTime     LockKind = "time"
	LockSpace    LockKind = "space"
	LockResource LockKind = "resource"
	LockFull     LockKind = "full"
)

// Task is one unit of production work.
type Task struct {
	ID                   int                   `json:"id" yaml:"id"`
	PlanID               int                   `json:"planId,omitempty" yaml:"planId,omitempty"`
	TemplateID           int                   `json:"templateId,omitempty" yaml:"templateId,omitempty"`
	TemplateName         string                `json:"templateName,omitempty" yaml:"templateName,omitempty"`
	ContestantID         int                   `json:"contestantId,omitempty" yaml:"contestantId,omitempty"`
	ContestantName       string                `json:"contestantName,omitempty" yaml:"contestantName,omitempty"`
	ZoneID               int                   `json:"zoneId,omitempty" yaml:"zoneId,omitempty"`
	SpaceID              int                   `json:"spaceId,omitempty" yaml:"spaceId,omitempty"`
	ItinerantTeamID      int                   `json:"itinerantTeamId,omitempty" yaml:"itinerantTeamId,omitempty"`
	Status               TaskStatus            `json:"status,omitempty" yaml:"status,omitempty"`
	DurationMin          *int                  `json:"durationOverrideMin,omitempty" yaml:"durationOverrideMin,omitempty"`
	DependsOnTaskIDs     []int                 `json:"dependsOnTaskIds,omitempty" yaml:"dependsOnTaskIds,omitempty"`
	DependsOnTaskID      int                   `json:"dependsOnTaskId,omitempty" yaml:"dependsOnTaskId,omitempty"`
	DependsOnTemplateIDs []int                 `json:"dependsOnTemplateIds,omitempty" yaml:"dependsOnTemplateIds,omitempty"`
	DependsOnTemplateID  int                   `json:"dependsOnTemplateId,omitempty" yaml:"dependsOnTemplateId,omitempty"`
	Resources            resources.Requirement `json:"resourceRequirements,omitempty" yaml:"resourceRequirements,omitempty"`
	FixedWindowStart     string                `json:"fixedWindowStart,omitempty" yaml:"fixedWindowStart,omitempty"`
	FixedWindowEnd       string                `json:"fixedWindowEnd,omitempty" yaml:"fixedWindowEnd,omitempty"`
	BreakKind            BreakKind             `json:"breakKind,omitempty" yaml:"breakKind,omitempty"`
	IsManualBlock        bool                  `json:"isManualBlock,omitempty" yaml:"isManualBlock,omitempty"`
	ManualTitle          string                `json:"manualTitle,omitempty" yaml:"manualTitle,omitempty"`
	StartPlanned         string                `json:"startPlanned,omitempty" yaml:"startPlanned,omitempty"`
	EndPlanned           string                `json:"endPlanned,omitempty" yaml:"endPlanned,omitempty"`
	AssignedResourceIDs  []int                 `json:"assignedResourceIds,omitempty" yaml:"assignedResourceIds,omitempty"`
	Priority             int                   `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Lock pins a task. Only time and full locks carrying both bounds pin time.
type Lock struct {
	TaskID           int      `json:"taskId" yaml:"taskId"`
	Kind             LockKind `json:"lockType" yaml:"lockType"`
	LockedStart      string   `json:"lockedStart,omitempty" yaml:"lockedStart,omitempty"`
	LockedEnd        string   `json:"lockedEnd,omitempty" yaml:"lockedEnd,omitempty"`
	LockedResourceID int      `json:"lockedResourceId,omitempty" yaml:"lockedResourceId,omitempty"`
}

// Clock is an HH:MM range.
type Clock struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// GroupingConfig tunes template grouping for one space.
type GroupingConfig struct {
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	Level    int    `json:"level" yaml:"level"`
	MinChain int    `json:"minChain,omitempty" yaml:"minChain,omitempty"`
}

// Weights are the per-heuristic 0..10 overrides. Nil means "derive from the
// friendly level".
type Weights struct {
	MainZoneFinishEarly       *float64 `json:"mainZoneFinishEarly,omitempty" yaml:"mainZoneFinishEarly,omitempty"`
	MainZoneKeepBusy          *float64 `json:"mainZoneKeepBusy,omitempty" yaml:"mainZoneKeepBusy,omitempty"`
	GroupBySpaceTemplateMatch *float64 `json:"groupBySpaceTemplateMatch,omitempty" yaml:"groupBySpaceTemplateMatch,omitempty"`
	GroupBySpaceActive        *float64 `json:"groupBySpaceActive,omitempty" yaml:"groupBySpaceActive,omitempty"`
	ContestantCompact         *float64 `json:"contestantCompact,omitempty" yaml:"contestantCompact,omitempty"`
	ContestantStayInZone      *float64 `json:"contestantStayInZone,omitempty" yaml:"contestantStayInZone,omitempty"`
	ContestantTotalSpan       *float64 `json:"contestantTotalSpan,omitempty" yaml:"contestantTotalSpan,omitempty"`
	ArrivalDepartureGrouping  *float64 `json:"arrivalDepartureGrouping,omitempty" yaml:"arrivalDepartureGrouping,omitempty"`
}

// Input is the snapshot of one production day.
type Input struct {
	PlanID  int   `json:"planId" yaml:"planId"`
	WorkDay Clock `json:"workDay" yaml:"workDay"`
	Meal    Clock `json:"meal" yaml:"meal"`

	MealTaskTemplateID            int    `json:"mealTaskTemplateId,omitempty" yaml:"mealTaskTemplateId,omitempty"`
	MealTaskTemplateName          string `json:"mealTaskTemplateName,omitempty" yaml:"mealTaskTemplateName,omitempty"`
	ContestantMealDurationMinutes *int   `json:"contestantMealDurationMinutes,omitempty" yaml:"contestantMealDurationMinutes,omitempty"`
	ContestantMealMaxSimultaneous *int   `json:"contestantMealMaxSimultaneous,omitempty" yaml:"contestantMealMaxSimultaneous,omitempty"`

	Tasks []Task `json:"tasks" yaml:"tasks"`
	Locks []Lock `json:"locks,omitempty" yaml:"locks,omitempty"`

	TaskTemplateNameByID       map[int]string                `json:"taskTemplateNameById,omitempty" yaml:"taskTemplateNameById,omitempty"`
	SpaceNameByID              map[int]string                `json:"spaceNameById,omitempty" yaml:"spaceNameById,omitempty"`
	ZoneResourceAssignments    map[int][]int                 `json:"zoneResourceAssignments,omitempty" yaml:"zoneResourceAssignments,omitempty"`
	SpaceResourceAssignments   map[int][]int                 `json:"spaceResourceAssignments,omitempty" yaml:"spaceResourceAssignments,omitempty"`
	SpaceParentByID            map[int]int                   `json:"spaceParentById,omitempty" yaml:"spaceParentById,omitempty"`
	ZoneResourceTypeReqs       map[int]map[int]int           `json:"zoneResourceTypeRequirements,omitempty" yaml:"zoneResourceTypeRequirements,omitempty"`
	SpaceResourceTypeReqs      map[int]map[int]int           `json:"spaceResourceTypeRequirements,omitempty" yaml:"spaceResourceTypeRequirements,omitempty"`
	PlanResourceItems          []resources.Item              `json:"planResourceItems,omitempty" yaml:"planResourceItems,omitempty"`
	ResourceItemComponents     map[int][]resources.Component `json:"resourceItemComponents,omitempty" yaml:"resourceItemComponents,omitempty"`
	ContestantAvailabilityByID map[int]Clock                 `json:"contestantAvailabilityById,omitempty" yaml:"contestantAvailabilityById,omitempty"`

	OptimizerMainZoneID              int                    `json:"optimizerMainZoneId,omitempty" yaml:"optimizerMainZoneId,omitempty"`
	OptimizerMainZonePriorityLevel   *int                   `json:"optimizerMainZonePriorityLevel,omitempty" yaml:"optimizerMainZonePriorityLevel,omitempty"`
	OptimizerPrioritizeMainZone      *bool                  `json:"optimizerPrioritizeMainZone,omitempty" yaml:"optimizerPrioritizeMainZone,omitempty"`
	OptimizerGroupingLevel           *int                   `json:"optimizerGroupingLevel,omitempty" yaml:"optimizerGroupingLevel,omitempty"`
	OptimizerGroupBySpaceAndTemplate *bool                  `json:"optimizerGroupBySpaceAndTemplate,omitempty" yaml:"optimizerGroupBySpaceAndTemplate,omitempty"`
	OptimizerMainZoneOptFinishEarly  *bool                  `json:"optimizerMainZoneOptFinishEarly,omitempty" yaml:"optimizerMainZoneOptFinishEarly,omitempty"`
	OptimizerMainZoneOptKeepBusy     *bool                  `json:"optimizerMainZoneOptKeepBusy,omitempty" yaml:"optimizerMainZoneOptKeepBusy,omitempty"`
	OptimizerContestantCompactLevel  *int                   `json:"optimizerContestantCompactLevel,omitempty" yaml:"optimizerContestantCompactLevel,omitempty"`
	OptimizerWeights                 Weights                `json:"optimizerWeights,omitempty" yaml:"optimizerWeights,omitempty"`
	GroupingZoneIDs                  []int                  `json:"groupingZoneIds,omitempty" yaml:"groupingZoneIds,omitempty"`
	GroupingBySpaceID                map[int]GroupingConfig `json:"groupingBySpaceId,omitempty" yaml:"groupingBySpaceId,omitempty"`
	MinimizeChangesBySpace           map[int]GroupingConfig `json:"minimizeChangesBySpace,omitempty" yaml:"minimizeChangesBySpace,omitempty"`
	MaxTemplateChangesByZoneID       map[int]int            `json:"maxTemplateChangesByZoneId,omitempty" yaml:"maxTemplateChangesByZoneId,omitempty"`

	ArrivalTaskTemplateName   string `json:"arrivalTaskTemplateName,omitempty" yaml:"arrivalTaskTemplateName,omitempty"`
	DepartureTaskTemplateName string `json:"departureTaskTemplateName,omitempty" yaml:"departureTaskTemplateName,omitempty"`
	VanCapacity               int    `json:"vanCapacity,omitempty" yaml:"vanCapacity,omitempty"`
	ArrivalGroupingTarget     int    `json:"arrivalGroupingTarget,omitempty" yaml:"arrivalGroupingTarget,omitempty"`
	DepartureGroupingTarget   int    `json:"departureGroupingTarget,omitempty" yaml:"departureGroupingTarget,omitempty"`
}
