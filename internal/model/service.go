package model

import "fmt"

type Service struct {
	Namespace string
	Name      string
}

func (s Service) String() string {
	return fmt.Sprintf("%s/%s", s.Namespace, s.Name)
}
