package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type SignalHandler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
	wg      sync.WaitGroup
}

func NewSignalHandler(ctx context.Context) *SignalHandler {
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	return &SignalHandler{
		ctx:     ctx,
		cancel:  cancel,
		sigChan: sigChan,
		wg:      sync.WaitGroup{},
	}
}

// Context returns the derived context that is cancelled on the first signal.
func (s *SignalHandler) Context() context.Context {
	return s.ctx
}

func (s *SignalHandler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.sigChan:
			fmt.Println("\nReceived shutdown signal...")
			s.cancel()
		case <-s.ctx.Done():
		}
	}()
}

func (s *SignalHandler) Wait() {
	s.wg.Wait()
}

func (s *SignalHandler) Stop() {
	signal.Stop(s.sigChan)
	s.cancel()
}
