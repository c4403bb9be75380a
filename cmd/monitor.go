// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/razor/pkg/razorlink"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and configuring analyzers",
	Long: `Monitor Razor analyzers via an interactive terminal UI.

Analyzers are listed as their TELEMETRY frames arrive. The selected
analyzer's watercut, temperature, frequency, phase and diagnostics are
shown live together with link statistics and an event log.

Commands typed in the input line are sent to the selected analyzer:
  NAME=VALUE or ADDR=VALUE   write a register
  NAME or ADDR               read a register
  cal VALUE                  calibrate oil to a reference watercut
  save                       request a snapshot save

Tab switches between the analyzer list and the input line. The link is
reopened automatically when the connection is lost.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// connectionManager owns the link and reopens it when the connection drops
type connectionManager struct {
	conn     Connection
	link     *razorlink.Link
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getLink() *razorlink.Link {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.link
}

func (cm *connectionManager) set(link *razorlink.Link, conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.link = link
	cm.conn = conn
	cm.connInfo = connInfo
}

func (cm *connectionManager) close() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.conn != nil {
		cm.conn.Close()
	}
}

// send writes a packet on the current link
func (cm *connectionManager) send(p *razorlink.Packet) error {
	link := cm.getLink()
	if link == nil {
		return ErrNoConnection
	}
	return link.Send(p)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	link, conn, connInfo, err := OpenLink()
	if err != nil {
		return err
	}

	cm := &connectionManager{done: make(chan struct{})}
	cm.set(link, conn, connInfo)

	m := initialMonitorModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done)
	cm.close()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// readerLoop receives from the link and reconnects when it fails
func (cm *connectionManager) readerLoop() {
	for {
		if !cm.receive() {
			return
		}
		cm.p.Send(connectionLostMsg{})
		if !cm.reconnect() {
			return
		}
	}
}

// receive feeds decoded frames to the TUI in batches until the link fails.
// Returns false when shutting down.
func (cm *connectionManager) receive() bool {
	batchChan := make(chan linkDataMsg, 100)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		cm.getLink().Receive(func(p *razorlink.Packet, err error) bool {
			select {
			case <-cm.done:
				return false
			default:
			}

			msg := linkDataMsg{packet: p, decodeErr: err}
			if p != nil {
				msg.validationErrors = razorlink.ValidatePacket(p)
			}
			select {
			case batchChan <- msg:
			default:
			}
			return true
		})
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		var batch linkBatchMsg
	drain:
		for {
			select {
			case msg := <-batchChan:
				batch.messages = append(batch.messages, msg)
			default:
				break drain
			}
		}
		if len(batch.messages) > 0 {
			cm.p.Send(batch)
		}
	}

	for {
		select {
		case <-cm.done:
			return false
		case <-readerDone:
			flush()
			select {
			case <-cm.done:
				return false
			default:
				return true
			}
		case <-ticker.C:
			flush()
		}
	}
}

// reconnect reopens the link with exponential backoff. Returns false when
// shutdown was requested.
func (cm *connectionManager) reconnect() bool {
	cm.close()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		link, conn, connInfo, err := OpenLink()
		if err == nil {
			cm.set(link, conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
