package targets

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"staywatch/internal/models"
	"staywatch/internal/store"
)

// stationsFile is the on-disk shape of the target list.
type stationsFile struct {
	Stations []stationEntry `json:"stations"`
}

type stationEntry struct {
	Name     string  `json:"name"`
	Line     string  `json:"line"`
	District string  `json:"district"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Priority int     `json:"priority"`
}

// LoadFromFile reads the stations file and saves every entry matching the
// allowed priorities as a Target. Existing rows are left alone; SaveTarget
// upserts on (name, line). Returns the number of targets saved.
func LoadFromFile(st store.Store, path string, priorities []int, radiusKM float64) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read stations file: %w", err)
	}

	var file stationsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse stations file: %w", err)
	}

	allowed := make(map[int]bool, len(priorities))
	for _, p := range priorities {
		allowed[p] = true
	}

	count := 0
	for _, s := range file.Stations {
		if len(allowed) > 0 && !allowed[s.Priority] {
			continue
		}
		target := &models.Target{
			Name:      s.Name,
			Line:      s.Line,
			District:  s.District,
			Latitude:  s.Lat,
			Longitude: s.Lng,
			RadiusKM:  radiusKM,
			Priority:  s.Priority,
		}
		if err := st.SaveTarget(target); err != nil {
			return count, fmt.Errorf("save target %s (%s): %w", s.Name, s.Line, err)
		}
		count++
	}

	log.Printf("Targets: Loaded %d targets from %s (priority filter: %v)", count, path, priorities)
	return count, nil
}
