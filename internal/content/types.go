package content

// LearningPath is an ordered track of courses toward a goal.
type LearningPath struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Level       string   `json:"level,omitempty"`
	CourseIDs   []string `json:"courseIds,omitempty"`
}

// Course is a single catalog entry.
type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Level       string   `json:"level,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Project is a hands-on exercise attached to the catalog.
type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	LabURL      string   `json:"labUrl,omitempty"`
}

// RoadmapItem is one step on a published learning roadmap.
type RoadmapItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Order       int    `json:"order,omitempty"`
}

// RoadmapProject links a roadmap phase to a project.
type RoadmapProject struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Phase     string `json:"phase,omitempty"`
	Order     int    `json:"order,omitempty"`
}

// Metadata describes a content bundle's provenance.
type Metadata struct {
	LastUpdated string `json:"lastUpdated,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ContentBundle is the full catalog payload. All slice fields are non-nil
// after normalization so consumers can range without nil checks.
type ContentBundle struct {
	LearningPaths   []LearningPath   `json:"learningPaths"`
	Courses         []Course         `json:"courses"`
	Projects        []Project        `json:"projects"`
	RoadmapItems    []RoadmapItem    `json:"roadmapItems"`
	RoadmapProjects []RoadmapProject `json:"roadmapProjects"`
	Metadata        Metadata         `json:"metadata"`
}

// normalize ensures every slice field is non-nil.
func (b *ContentBundle) normalize() {
	if b.LearningPaths == nil {
		b.LearningPaths = []LearningPath{}
	}
	if b.Courses == nil {
		b.Courses = []Course{}
	}
	if b.Projects == nil {
		b.Projects = []Project{}
	}
	if b.RoadmapItems == nil {
		b.RoadmapItems = []RoadmapItem{}
	}
	if b.RoadmapProjects == nil {
		b.RoadmapProjects = []RoadmapProject{}
	}
}

// ProgressItem records a user's progress on one course or project.
type ProgressItem struct {
	ItemID      string `json:"itemId"`
	ItemType    string `json:"itemType,omitempty"`
	Status      string `json:"status"`
	CompletedAt string `json:"completedAt,omitempty"`
}
