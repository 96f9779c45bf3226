package targets

import (
	"os"
	"path/filepath"
	"testing"

	"staywatch/internal/models"
	"staywatch/internal/store"
)

type captureStore struct {
	store.Store
	saved []models.Target
}

func (c *captureStore) SaveTarget(t *models.Target) error {
	c.saved = append(c.saved, *t)
	return nil
}

const stationsJSON = `{"stations":[
	{"name":"Hongik Univ.","line":"2","district":"Mapo-gu","lat":37.557,"lng":126.924,"priority":1},
	{"name":"Myeongdong","line":"4","district":"Jung-gu","lat":37.561,"lng":126.986,"priority":2},
	{"name":"Jamsil","line":"2","district":"Songpa-gu","lat":37.513,"lng":127.100,"priority":3}
]}`

func writeStations(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.json")
	if err := os.WriteFile(path, []byte(stationsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFilePriorityFilter(t *testing.T) {
	st := &captureStore{}
	n, err := LoadFromFile(st, writeStations(t), []int{1, 2}, 3.0)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 2 || len(st.saved) != 2 {
		t.Fatalf("expected 2 targets, got n=%d saved=%d", n, len(st.saved))
	}
	if st.saved[0].Name != "Hongik Univ." || st.saved[0].Line != "2" {
		t.Errorf("first target mismatch: %+v", st.saved[0])
	}
	if st.saved[0].RadiusKM != 3.0 {
		t.Errorf("radius not applied: %f", st.saved[0].RadiusKM)
	}
}

func TestLoadFromFileNoFilterLoadsAll(t *testing.T) {
	st := &captureStore{}
	n, err := LoadFromFile(st, writeStations(t), nil, 2.0)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 3 {
		t.Errorf("empty filter should load everything, got %d", n)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	st := &captureStore{}
	if _, err := LoadFromFile(st, filepath.Join(t.TempDir(), "nope.json"), nil, 1.0); err == nil {
		t.Error("missing file should error")
	}
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st := &captureStore{}
	if _, err := LoadFromFile(st, path, nil, 1.0); err == nil {
		t.Error("malformed file should error")
	}
}
