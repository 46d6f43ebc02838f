package repository

import (
	"os"
	"path/filepath"
	"testing"

	"housing_features/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilitySetFromFrameProjected(t *testing.T) {
	frame, err := model.NewFrame(
		[]string{"學校名稱", "lat", "lng", "橫坐標", "縱坐標", "Is_Popular"},
		[][]string{
			{"A", "25.03", "121.56", "306000", "2769000", "1"},
			{"B", "25.04", "121.50", "", "", "0"},
			{"C", "25.05", "121.52", "302000", "2771000", "0"},
		})
	require.NoError(t, err)

	cols := DefaultFacilityColumns
	cols.Attributes = []string{"Is_Popular"}
	fs, err := FacilitySetFromFrame("es", frame, cols)
	require.NoError(t, err)

	assert.Equal(t, model.CRSTWD97, fs.CRS)
	assert.Equal(t, 2, fs.Len(), "row without projected coordinates is dropped")
	assert.Equal(t, model.Point{X: 302000, Y: 2771000}, fs.At(1))
	v, err := fs.Attribute("Is_Popular", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestFacilitySetFromFrameGeographic(t *testing.T) {
	frame, err := model.NewFrame([]string{"name", "lat", "lng"}, [][]string{{"Taipei Main", "25.0478", "121.5170"}})
	require.NoError(t, err)

	fs, err := FacilitySetFromFrame("mrt", frame, DefaultFacilityColumns)
	require.NoError(t, err)
	assert.Equal(t, model.CRSWGS84, fs.CRS)
	assert.Equal(t, model.Point{X: 121.5170, Y: 25.0478}, fs.At(0))
}

func TestFacilitySetFromFrameErrors(t *testing.T) {
	frame, err := model.NewFrame([]string{"name"}, [][]string{{"x"}})
	require.NoError(t, err)
	_, err = FacilitySetFromFrame("atm", frame, DefaultFacilityColumns)
	require.ErrorIs(t, err, model.ErrSchemaMismatch)

	frame, err = model.NewFrame([]string{"lat", "lng"}, [][]string{{"25", "121"}})
	require.NoError(t, err)
	cols := DefaultFacilityColumns
	cols.Attributes = []string{"Is_Combined"}
	_, err = FacilitySetFromFrame("jhs", frame, cols)
	require.ErrorIs(t, err, model.ErrSchemaMismatch)
}

func TestLoadFacilityTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atm.csv")
	require.NoError(t, os.WriteFile(path, []byte("lat,lng\n25,121.5\n"), 0o644))

	frame, err := LoadFacilityTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Len())

	xlsx := writeWorkbook(t, "Sheet1", [][]interface{}{{"lat", "lng"}, {25.1, 121.4}})
	frame, err = LoadFacilityTable(xlsx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Len())

	_, err = LoadFacilityTable(filepath.Join(dir, "atm.json"), "")
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}
