package dto

import "github.com/horockey/ranger/internal/model"

type Service struct {
	Namespace   string `json:"namespace"`
	ServiceName string `json:"serviceName"`
}

type ServicesResponse struct {
	Success bool      `json:"success"`
	Data    []Service `json:"data"`
}

func ServiceToModel(s Service) model.Service {
	return model.Service{Namespace: s.Namespace, Name: s.ServiceName}
}

func NewService(s model.Service) Service {
	return Service{Namespace: s.Namespace, ServiceName: s.Name}
}
