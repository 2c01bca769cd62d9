// Package sink persists generated artifacts twice: gob-encoded in a LevelDB
// database and as one YAML document per unit for human inspection.
package sink

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"

	"github.com/hashicorp/go-hclog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Store is the artifact sink. It is safe for concurrent use.
type Store struct {
	db        *leveldb.DB
	exportDir string
	logger    hclog.Logger
}

var _ ports.ArtifactSink = (*Store)(nil)

// Open opens (or creates) the database at dbPath. YAML documents are written
// below exportDir; an empty exportDir disables them.
func Open(dbPath, exportDir string, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("opening artifact db %s: %w", dbPath, err)
	}
	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating export dir: %w", err)
		}
	}
	return &Store{db: db, exportDir: exportDir, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Persist writes the binary form first and the YAML form second. A unit
// persisted again replaces both.
func (s *Store) Persist(ctx context.Context, unitID int, a domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.UnitID = unitID

	b, err := encodeGob(a)
	if err != nil {
		return fmt.Errorf("encoding mesa %d: %w", unitID, err)
	}
	batch := new(leveldb.Batch)
	batch.Put(artifactKey(a.ElectionID, unitID), b)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("writing mesa %d: %w", unitID, err)
	}

	if s.exportDir == "" {
		return nil
	}
	if err := s.export(a); err != nil {
		return fmt.Errorf("exporting mesa %d: %w", unitID, err)
	}
	s.logger.Trace("artifact persisted", "election", a.ElectionID, "unit", unitID)
	return nil
}

// Load reads the binary form of one artifact.
func (s *Store) Load(electionID domain.ElectionID, unitID int) (domain.Artifact, error) {
	b, err := s.db.Get(artifactKey(electionID, unitID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return domain.Artifact{}, domain.Errorf(domain.KindNotFound, "no artifact for mesa %d in election %d", unitID, electionID)
	}
	if err != nil {
		return domain.Artifact{}, err
	}
	var a domain.Artifact
	if err := decodeGob(b, &a); err != nil {
		return domain.Artifact{}, fmt.Errorf("decoding mesa %d: %w", unitID, err)
	}
	return a, nil
}

// Units lists the persisted units of an election in ascending order.
func (s *Store) Units(electionID domain.ElectionID) ([]int, error) {
	prefix := electionPrefix(electionID)
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var ids []int
	for it.Next() {
		id, err := strconv.Atoi(string(bytes.TrimPrefix(it.Key(), prefix)))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// ExportPath is where the YAML form of a unit lives.
func (s *Store) ExportPath(electionID domain.ElectionID, unitID int) string {
	return filepath.Join(s.exportDir, fmt.Sprintf("election_%d", electionID), fmt.Sprintf("mesa_%d.yaml", unitID))
}

// LoadExport reads the YAML form of one artifact.
func (s *Store) LoadExport(electionID domain.ElectionID, unitID int) (domain.Artifact, error) {
	b, err := os.ReadFile(s.ExportPath(electionID, unitID))
	if errors.Is(err, os.ErrNotExist) {
		return domain.Artifact{}, domain.Errorf(domain.KindNotFound, "no export for mesa %d in election %d", unitID, electionID)
	}
	if err != nil {
		return domain.Artifact{}, err
	}
	var a domain.Artifact
	if err := yaml.Unmarshal(b, &a); err != nil {
		return domain.Artifact{}, err
	}
	return a, nil
}

// export writes through a temp file so readers never see a partial document.
func (s *Store) export(a domain.Artifact) error {
	path := s.ExportPath(a.ElectionID, a.UnitID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mesa-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func electionPrefix(electionID domain.ElectionID) []byte {
	return []byte("a:" + strconv.Itoa(int(electionID)) + ":")
}

func artifactKey(electionID domain.ElectionID, unitID int) []byte {
	var b strings.Builder
	b.Write(electionPrefix(electionID))
	b.WriteString(strconv.Itoa(unitID))
	return []byte(b.String())
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
