package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"pvivy/internal/model"
)

// SavedModel is the serialized form of a TrainedModel.
type SavedModel struct {
	ID        string             `json:"id" msgpack:"id"`
	CreatedAt time.Time          `json:"created_at" msgpack:"created_at"`
	Features  []string           `json:"features" msgpack:"features"`
	Classes   []model.FaultLabel `json:"classes" msgpack:"classes"`
	Scaler    Scaler             `json:"scaler" msgpack:"scaler"`
	Forest    *Forest            `json:"forest" msgpack:"forest"`
}

func (m *TrainedModel) saved() SavedModel {
	return SavedModel{
		ID:        m.ID.String(),
		CreatedAt: m.CreatedAt,
		Features:  m.Features,
		Classes:   m.Classes,
		Scaler:    m.Scaler,
		Forest:    m.Forest,
	}
}

func fromSaved(s SavedModel) (*TrainedModel, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("model id: %w", err)
	}
	m := &TrainedModel{
		ID:        id,
		CreatedAt: s.CreatedAt,
		Features:  s.Features,
		Classes:   s.Classes,
		Scaler:    s.Scaler,
		Forest:    s.Forest,
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

// Save serializes the model to JSON.
func (m *TrainedModel) Save() ([]byte, error) {
	return json.Marshal(m.saved())
}

// Load deserializes a model from JSON.
func Load(data []byte) (*TrainedModel, error) {
	var s SavedModel
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return fromSaved(s)
}

// MarshalMsgpack serializes the model to msgpack.
func (m *TrainedModel) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(m.saved())
}

// LoadMsgpack deserializes a model from msgpack.
func LoadMsgpack(data []byte) (*TrainedModel, error) {
	var s SavedModel
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return fromSaved(s)
}

// Source supplies a trained model to the inference path.
type Source interface {
	Load(ctx context.Context) (*TrainedModel, error)
}

// StaticSource serves an in-memory model.
type StaticSource struct {
	Model *TrainedModel
}

func (s StaticSource) Load(context.Context) (*TrainedModel, error) {
	if s.Model == nil {
		return nil, &model.ModelError{Reason: "no trained model"}
	}
	return s.Model, nil
}

// FileSource reads a model artifact. Files ending in .msgpack or .mp are
// decoded as msgpack, anything else as JSON.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*TrainedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	if isMsgpack(s.Path) {
		return LoadMsgpack(data)
	}
	return Load(data)
}

// WriteFile saves m to path in the format its extension selects.
func WriteFile(path string, m *TrainedModel) error {
	var (
		data []byte
		err  error
	)
	if isMsgpack(path) {
		data, err = m.MarshalMsgpack()
	} else {
		data, err = m.Save()
	}
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func isMsgpack(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return true
	}
	return false
}
