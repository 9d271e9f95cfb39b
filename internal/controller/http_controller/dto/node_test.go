package dto_test

import (
	"encoding/json"
	"testing"

	"github.com/horockey/ranger/internal/controller/http_controller/dto"
	"github.com/horockey/ranger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shardInfo struct {
	ShardID int `json:"shardId"`
}

func Test_NodeToModel(t *testing.T) {
	n := dto.Node{
		Host:                 "h1",
		Port:                 8080,
		NodeData:             json.RawMessage(`{"shardId":2}`),
		HealthcheckStatus:    "healthy",
		LastUpdatedTimeStamp: 42,
	}

	res, err := dto.NodeToModel(n, model.JSONDeserializer[shardInfo]())
	require.NoError(t, err)

	assert.Equal(t, model.Node[shardInfo]{
		Host:                 "h1",
		Port:                 8080,
		Data:                 shardInfo{ShardID: 2},
		HealthcheckStatus:    model.HealthcheckStatusHealthy,
		LastUpdatedTimeStamp: 42,
	}, res)
}

func Test_NodeToModel_MissingStatusIsUnknown(t *testing.T) {
	res, err := dto.NodeToModel(dto.Node{Host: "h1"}, model.JSONDeserializer[shardInfo]())
	require.NoError(t, err)

	assert.Equal(t, model.HealthcheckStatusUnknown, res.HealthcheckStatus)
}

func Test_NodeToModel_BadData(t *testing.T) {
	_, err := dto.NodeToModel(
		dto.Node{Host: "h1", NodeData: json.RawMessage(`"oops"`)},
		model.JSONDeserializer[shardInfo](),
	)
	assert.Error(t, err)
}

func Test_NewNode(t *testing.T) {
	res, err := dto.NewNode(model.Node[shardInfo]{
		Host:              "h1",
		Port:              1,
		Data:              shardInfo{ShardID: 7},
		HealthcheckStatus: model.HealthcheckStatusUnhealthy,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"shardId":7}`, string(res.NodeData))
	assert.Equal(t, "unhealthy", res.HealthcheckStatus)
}
