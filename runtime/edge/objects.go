package edge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/datastore"
)

// ObjectAccess wraps the agent's data store calls under one permission key.
// Every instance gets its own key; shared objects pass access around by
// owner permission instead.
type ObjectAccess struct {
	agent      *Agent
	permission datastore.PermissionKey
}

func (a *Agent) Objects(permission datastore.PermissionKey) *ObjectAccess {
	return &ObjectAccess{agent: a, permission: permission}
}

// Read fetches an object. found is false when the object does not exist or
// has expired; the view's WriteAccess flag says whether a write would stick.
func (o *ObjectAccess) Read(ctx context.Context, id datastore.ObjectID) (*datastore.ObjectView, bool, error) {
	pkt := &codec.DataObjectReadPacket{Permission: o.permission.String(), ID: id}
	result, err := o.agent.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return nil, false, err
	}
	if !result.IsOK() {
		return nil, false, fmt.Errorf("data read failed: %s", result.Code)
	}
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return nil, false, nil
	}
	var view datastore.ObjectView
	if err := json.Unmarshal(result.Data, &view); err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

func (o *ObjectAccess) Write(ctx context.Context, obj datastore.DataObject) error {
	pkt := &codec.DataObjectWritePacket{Permission: o.permission.String(), Object: obj}
	result, err := o.agent.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("data write failed: %s", result.Code)
	}
	return nil
}

func (o *ObjectAccess) Remove(ctx context.Context, id datastore.ObjectID) error {
	pkt := &codec.DataObjectRemovePacket{Permission: o.permission.String(), ID: id}
	result, err := o.agent.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("data remove failed: %s", result.Code)
	}
	return nil
}

func (o *ObjectAccess) ListIDs(ctx context.Context, relational *datastore.RelationalID, prefix string) ([]datastore.ObjectID, error) {
	pkt := &codec.DataObjectListIdsPacket{Permission: o.permission.String(), Relational: relational, Prefix: prefix}
	result, err := o.agent.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return nil, err
	}
	if !result.IsOK() {
		return nil, fmt.Errorf("data list failed: %s", result.Code)
	}
	var ids []datastore.ObjectID
	if err := json.Unmarshal(result.Data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (o *ObjectAccess) List(ctx context.Context, relational *datastore.RelationalID, prefix string) ([]datastore.ObjectView, error) {
	pkt := &codec.DataObjectsListPacket{Permission: o.permission.String(), Relational: relational, Prefix: prefix}
	result, err := o.agent.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return nil, err
	}
	if !result.IsOK() {
		return nil, fmt.Errorf("data list failed: %s", result.Code)
	}
	var views []datastore.ObjectView
	if err := json.Unmarshal(result.Data, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// --- saved locale ---

func (a *Agent) SavedLocale(ctx context.Context, player uuid.UUID) (string, error) {
	pkt := &codec.SavedLocaleGetPacket{Player: player}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return "", err
	}
	if !result.IsOK() {
		return "", fmt.Errorf("locale fetch failed: %s", result.Code)
	}
	var locale string
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &locale); err != nil {
			return "", err
		}
	}
	return locale, nil
}

func (a *Agent) SetSavedLocale(ctx context.Context, player uuid.UUID, locale string) error {
	pkt := &codec.SavedLocaleSetPacket{Player: player, Locale: locale}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("locale save failed: %s", result.Code)
	}
	return nil
}
