package events

import (
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
)

// Node event types
const (
	EventState       = "state"
	EventMeasurement = "measurement"
	EventUplink      = "uplink"
	EventTxDone      = "tx_done"
	EventRadio       = "radio"
	EventCadence     = "cadence"
	EventSleep       = "sleep"
	EventStatus      = "status"
	EventError       = "error"
)

// System event types
const (
	SysEventStarted = "started"
	SysEventStopped = "stopped"
	SysEventSetup   = "setup"
	SysEventError   = "error"
)

type NodeEvent struct {
	ID          string                   `json:"id"`
	Time        time.Time                `json:"time"`
	DevAddr     string                   `json:"devAddr"`
	Product     string                   `json:"product"`
	Type        string                   `json:"type"`
	State       string                   `json:"state,omitempty"`
	From        string                   `json:"from,omitempty"`
	Flags       string                   `json:"flags,omitempty"`
	FCnt        *uint32                  `json:"fCnt,omitempty"`
	FPort       *uint8                   `json:"fPort,omitempty"`
	Payload     string                   `json:"payload,omitempty"`
	PHYPayload  string                   `json:"phyPayload,omitempty"`
	OK          *bool                    `json:"ok,omitempty"`
	Measurement *measurement.Measurement `json:"measurement,omitempty"`
	Extra       map[string]string        `json:"extra,omitempty"`
}

type SystemEvent struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
	IsError bool      `json:"isError"`
}

func NodeTopic(devAddr string) string { return "node:" + devAddr }

const SystemTopic = "system"
const ErrorsTopic = "errors"
