package imageprocessor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imdirdiff/config"
)

func TestParseFlipMean(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		want    float64
		wantErr bool
	}{
		{name: "embedded", stdout: "FLIP between reference and test\n\tMean: 0.125\n\tWeighted median: 0.1\n", want: 0.125},
		{name: "integer", stdout: "Mean: 1", want: 1},
		{name: "first match wins", stdout: "Mean: 0.25\nMean: 0.75", want: 0.25},
		{name: "missing", stdout: "Median: 0.3", wantErr: true},
		{name: "empty", stdout: "", wantErr: true},
		{name: "malformed number", stdout: "Mean: 1.2.3", wantErr: true},
		{name: "negative sign not part of grammar", stdout: "Mean: -0.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlipMean(tt.stdout)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrFlipOutput)
				var perr *FlipParseError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, tt.stdout, perr.Output)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlipScore(t *testing.T) {
	assert.Equal(t, 0.875, FlipScore(0.125))
	assert.Equal(t, 1.0, FlipScore(0))
	assert.Equal(t, 0.0, FlipScore(1))
	assert.Equal(t, 0.0, FlipScore(3.5))
}

// fakeFlip writes a shell script standing in for the flip binary
func fakeFlip(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake flip executable needs a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "flip")
	script := "#!/bin/sh\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  case \"$1\" in\n" +
		"    -d) dir=\"$2\" ;;\n" +
		"    -b) base=\"$2\" ;;\n" +
		"  esac\n" +
		"  shift 2\n" +
		"done\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func flipPair(t *testing.T) ImagePair {
	t.Helper()

	dir := t.TempDir()
	diffDir := filepath.Join(dir, "out", "diff", "sub")
	require.NoError(t, os.MkdirAll(diffDir, 0o755))

	return ImagePair{
		Rel:     "sub/x.png",
		PathA:   writePNG(t, dir, "a/sub/x.png", patternImage(8, 8, 0)),
		PathB:   writePNG(t, dir, "b/sub/x.png", patternImage(8, 8, 50)),
		DiffDir: diffDir,
	}
}

func TestFlipCompare(t *testing.T) {
	pair := flipPair(t)
	fixture := writePNG(t, t.TempDir(), "heat.png", patternImage(8, 8, 9))
	t.Setenv("FAKE_FLIP_DIFF", fixture)

	bin := fakeFlip(t, "cp \"$FAKE_FLIP_DIFF\" \"$dir/$base.png\"\necho \"Mean: 0.125\"\n")

	out, err := NewFlip(bin).Compare(context.Background(), pair)
	require.NoError(t, err)

	assert.Equal(t, 0.875, out.Score)
	assert.Equal(t, filepath.Join(pair.DiffDir, "x.png"), out.DiffFile)
	assert.Nil(t, out.Heatmap)
}

func TestFlipCompareKeepsDiffsOfSameStemApart(t *testing.T) {
	pair := flipPair(t)
	dir := t.TempDir()
	pair.Rel = "sub/x.jpg"
	pair.PathA = writePNG(t, dir, "a/sub/x.jpg", patternImage(8, 8, 0))
	pair.PathB = writePNG(t, dir, "b/sub/x.jpg", patternImage(8, 8, 50))

	fixture := writePNG(t, t.TempDir(), "heat.png", patternImage(8, 8, 9))
	t.Setenv("FAKE_FLIP_DIFF", fixture)
	bin := fakeFlip(t, "cp \"$FAKE_FLIP_DIFF\" \"$dir/$base.png\"\necho \"Mean: 0.25\"\n")

	out, err := NewFlip(bin).Compare(context.Background(), pair)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(pair.DiffDir, "x.jpg.png"), out.DiffFile)
	assert.FileExists(t, out.DiffFile)
	assert.NoFileExists(t, filepath.Join(pair.DiffDir, "x.png"))
}

func TestFlipCompareNonZeroExitWithStatistics(t *testing.T) {
	pair := flipPair(t)
	fixture := writePNG(t, t.TempDir(), "heat.png", patternImage(8, 8, 9))
	t.Setenv("FAKE_FLIP_DIFF", fixture)

	bin := fakeFlip(t, "cp \"$FAKE_FLIP_DIFF\" \"$dir/$base.png\"\necho \"Mean: 0.5\"\nexit 2\n")

	out, err := NewFlip(bin).Compare(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Score)
}

func TestFlipCompareUnparseableOutput(t *testing.T) {
	pair := flipPair(t)
	bin := fakeFlip(t, "echo \"nothing useful\"\n")

	_, err := NewFlip(bin).Compare(context.Background(), pair)
	require.ErrorIs(t, err, ErrFlipOutput)
}

func TestFlipCompareInvalidUTF8(t *testing.T) {
	pair := flipPair(t)
	bin := fakeFlip(t, "printf 'Mean: 0.1 \\377\\376'\n")

	_, err := NewFlip(bin).Compare(context.Background(), pair)
	require.ErrorIs(t, err, ErrFlipOutput)
}

func TestFlipCompareMissingDiffImage(t *testing.T) {
	pair := flipPair(t)
	bin := fakeFlip(t, "echo \"Mean: 0.2\"\n")

	_, err := NewFlip(bin).Compare(context.Background(), pair)
	require.ErrorIs(t, err, ErrFlipDiffMissing)
}

func TestFlipCompareMissingExecutable(t *testing.T) {
	pair := flipPair(t)

	_, err := NewFlip(filepath.Join(t.TempDir(), "no-such-flip")).Compare(context.Background(), pair)
	require.ErrorIs(t, err, ErrFlipSpawn)
}

func TestLocateFlipDiffFallsBackToSourceName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.jpg"), []byte("data"), 0o644))

	got, err := locateFlipDiff(dir, "sub/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x.jpg"), got)
}

func TestNewComparator(t *testing.T) {
	pixel, err := NewComparator(config.CompareConfig{Backend: config.BackendPixel})
	require.NoError(t, err)
	assert.Equal(t, "pixel", pixel.Name())

	flip, err := NewComparator(config.CompareConfig{Backend: config.BackendFlip, Flip: config.FlipConfig{Executable: "/opt/flip"}})
	require.NoError(t, err)
	assert.Equal(t, "flip", flip.Name())
	assert.Equal(t, "/opt/flip", flip.(*Flip).Executable)

	_, err = NewComparator(config.CompareConfig{Backend: "magic"})
	require.ErrorIs(t, err, config.ErrInvalidBackend)
}
