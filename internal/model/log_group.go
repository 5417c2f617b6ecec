package model

// LogGroup describes a log group discovered in one region.
type LogGroup struct {
	Name            string `json:"name"`
	Region          string `json:"region"`
	CreationTime    *int64 `json:"creationTime"`
	RetentionInDays *int32 `json:"retentionInDays"`
	StoredBytes     int64  `json:"storedBytes"`
}

// GroupNames returns the names of groups in order.
func GroupNames(groups []LogGroup) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names
}
