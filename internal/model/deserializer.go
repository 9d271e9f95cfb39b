package model

import (
	"encoding/json"
	"fmt"
)

type Deserializer[T any] interface {
	Deserialize(data []byte) (T, error)
}

type DeserializerFunc[T any] func(data []byte) (T, error)

func (df DeserializerFunc[T]) Deserialize(data []byte) (T, error) {
	return df(data)
}

func JSONDeserializer[T any]() Deserializer[T] {
	return DeserializerFunc[T](func(data []byte) (T, error) {
		var res T
		if len(data) == 0 {
			return res, nil
		}
		if err := json.Unmarshal(data, &res); err != nil {
			return res, fmt.Errorf("unmarshaling json: %w", err)
		}
		return res, nil
	})
}
