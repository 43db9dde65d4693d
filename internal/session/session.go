// Package session persists the shot list of a source between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/shotlist/internal/ffmpeg"
	"github.com/keagan/shotlist/internal/shots"
	"github.com/keagan/shotlist/pkg/util"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no session was saved for a source.
var ErrNotFound = errors.New("session not found")

// File is the auto-save document for one source video.
type File struct {
	Source          string            `json:"source"`
	Threshold       float64           `json:"threshold"`
	Probe           *ffmpeg.VideoInfo `json:"probe_data"`
	Prefix          string            `json:"prefix"`
	ShotStart       int               `json:"shot_start"`
	ExportDirectory string            `json:"export_directory"`
	SavedAt         time.Time         `json:"saved_at"`
	Shots           []shots.Record    `json:"shots"`
}

// NewFile captures the current state of seg.
func NewFile(seg *shots.Segmentation, probe *ffmpeg.VideoInfo, threshold float64, prefix string, shotStart int, exportDir string) *File {
	return &File{
		Source:          seg.Source(),
		Threshold:       threshold,
		Probe:           probe,
		Prefix:          prefix,
		ShotStart:       shotStart,
		ExportDirectory: exportDir,
		Shots:           seg.Records(),
	}
}

// Segmentation rebuilds the shot list saved in f.
func (f *File) Segmentation() (*shots.Segmentation, error) {
	total := 0
	if f.Probe != nil {
		total = f.Probe.Frames
	}
	return shots.Restore(f.Shots, total)
}

type settings struct {
	LastOpen string `json:"last_open"`
}

// Store keeps auto-saves under <dir>/auto_saves and the last opened
// source in <dir>/config.json.
type Store struct {
	dir    string
	logger zerolog.Logger
}

func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Path returns the auto-save location for source. Sources sharing a file
// name in different directories get different files.
func (s *Store) Path(source string) string {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	key := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs)))
	name := fmt.Sprintf("%s-%s.json", util.Stem(source), key.String()[:8])
	return filepath.Join(s.dir, "auto_saves", name)
}

// Save writes f, replacing any previous save for the same source.
func (s *Store) Save(f *File) error {
	if f.Source == "" {
		return errors.New("session has no source")
	}
	f.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	path := s.Path(f.Source)
	if err := util.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.logger.Debug().Str("source", f.Source).Str("path", path).Int("shots", len(f.Shots)).Msg("session saved")
	return nil
}

// Load reads the auto-save for source. A save without shots counts as missing.
func (s *Store) Load(source string) (*File, error) {
	path := s.Path(source)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shots.ErrInvalidSession, path, err)
	}
	if len(f.Shots) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
	}

	s.logger.Debug().Str("source", source).Str("path", path).Msg("session loaded")
	return &f, nil
}

// Delete removes the auto-save for source.
func (s *Store) Delete(source string) error {
	err := os.Remove(s.Path(source))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SetLastOpen records source as the most recently opened video.
func (s *Store) SetLastOpen(source string) error {
	abs, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	data, err := json.Marshal(settings{LastOpen: filepath.ToSlash(abs)})
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(filepath.Join(s.dir, "config.json"), data)
}

// LastOpen returns the most recently opened source, or ErrNotFound when
// none was recorded or the file no longer exists.
func (s *Store) LastOpen() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	var st settings
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("parse config.json: %w", err)
	}
	if st.LastOpen == "" || !util.FileExists(filepath.FromSlash(st.LastOpen)) {
		return "", ErrNotFound
	}
	return filepath.FromSlash(st.LastOpen), nil
}
