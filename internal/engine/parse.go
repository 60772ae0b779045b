package engine

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Convoy/internal/domain"
)

// ParseSpec разбирает YAML-дескриптор stack.
//
// Разбор строгий: неизвестные поля считаются ошибкой, чтобы опечатки
// в дескрипторе не терялись молча.
func ParseSpec(data []byte) (*domain.StackSpec, error) {
	var spec domain.StackSpec

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse stack spec: %w", err)
	}

	return &spec, nil
}

// ParseAndValidate разбирает дескриптор и сразу валидирует его.
func ParseAndValidate(data []byte) (*domain.StackSpec, error) {
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, err
	}

	if err := Validate(spec); err != nil {
		return nil, err
	}

	return spec, nil
}
