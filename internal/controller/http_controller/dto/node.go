package dto

import (
	"encoding/json"
	"fmt"

	"github.com/horockey/ranger/internal/model"
)

type Node struct {
	Host                 string          `json:"host"`
	Port                 int             `json:"port"`
	NodeData             json.RawMessage `json:"nodeData,omitempty"`
	HealthcheckStatus    string          `json:"healthcheckStatus"`
	LastUpdatedTimeStamp int64           `json:"lastUpdatedTimeStamp"`
}

type NodesResponse struct {
	Success bool   `json:"success"`
	Data    []Node `json:"data"`
}

func NodeToModel[T any](n Node, d model.Deserializer[T]) (model.Node[T], error) {
	res := model.Node[T]{
		Host:                 n.Host,
		Port:                 n.Port,
		HealthcheckStatus:    model.HealthcheckStatus(n.HealthcheckStatus),
		LastUpdatedTimeStamp: n.LastUpdatedTimeStamp,
	}
	if res.HealthcheckStatus == "" {
		res.HealthcheckStatus = model.HealthcheckStatusUnknown
	}

	if d != nil && len(n.NodeData) > 0 {
		data, err := d.Deserialize(n.NodeData)
		if err != nil {
			return model.Node[T]{}, fmt.Errorf("deserializing node data of %s:%d: %w", n.Host, n.Port, err)
		}
		res.Data = data
	}

	return res, nil
}

func NewNode[T any](n model.Node[T]) (Node, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return Node{}, fmt.Errorf("marshaling node data: %w", err)
	}

	return Node{
		Host:                 n.Host,
		Port:                 n.Port,
		NodeData:             data,
		HealthcheckStatus:    string(n.HealthcheckStatus),
		LastUpdatedTimeStamp: n.LastUpdatedTimeStamp,
	}, nil
}
