// Package config publishes configuration sections as retained bus messages
// so that services can pick up their own section on config/<name>.
package config

import (
	"errors"

	"uvsense-go/bus"
)

const configPrefix = "config"

var ErrNoSections = errors.New("config: no sections to publish")

// Service holds the current value of every configuration section.
type Service struct {
	sections map[string]any
}

func NewService(sections map[string]any) *Service {
	s := &Service{sections: map[string]any{}}
	for k, v := range sections {
		s.sections[k] = v
	}
	return s
}

// Topic returns the retained topic for a section.
func Topic(name string) bus.Topic { return bus.T(configPrefix, name) }

// Publish sends every section as a retained message.
func (s *Service) Publish(conn *bus.Connection) error {
	if len(s.sections) == 0 {
		return ErrNoSections
	}
	for k, v := range s.sections {
		conn.Publish(conn.NewMessage(Topic(k), v, true))
	}
	return nil
}

// Set replaces one section and republishes it. A nil value clears the
// retained message.
func (s *Service) Set(conn *bus.Connection, name string, v any) {
	if v == nil {
		delete(s.sections, name)
	} else {
		s.sections[name] = v
	}
	conn.Publish(conn.NewMessage(Topic(name), v, true))
}
