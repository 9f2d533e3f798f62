package process

import (
	"context"
	"time"

	"github.com/tauraamui/camerastream/pkg/log"
)

type Process interface {
	Setup() Process
	Start()
	Stop()
	Wait()
}

type Settings struct {
	WaitForShutdownMsg string
	Process            func(context.Context) []chan interface{}
}

func New(settings Settings) Process {
	return &process{
		waitForShutdownMsg: settings.WaitForShutdownMsg,
		process:            settings.Process,
	}
}

type process struct {
	process            func(context.Context) []chan interface{}
	waitForShutdownMsg string
	canceller          context.CancelFunc
	signals            []chan interface{}
}

func (p *process) logShutdown() {
	if len(p.waitForShutdownMsg) > 0 {
		log.Info(p.waitForShutdownMsg)
	}
}

func (p *process) Setup() Process { return p }

func (p *process) Start() {
	ctx, canceller := context.WithCancel(context.Background())
	p.canceller = canceller
	p.signals = append(p.signals, p.process(ctx)...)
}

func (p *process) Stop() {
	p.logShutdown()
	if p.canceller != nil {
		p.canceller()
	}
}

func (p *process) Wait() {
	for _, sig := range p.signals {
		<-sig
	}
}

// Every runs fn each interval until cancelled.
func Every(interval time.Duration, fn func(time.Time)) func(context.Context) []chan interface{} {
	return func(cancel context.Context) []chan interface{} {
		stopping := make(chan interface{})
		go func() {
			defer close(stopping)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-cancel.Done():
					return
				case t := <-ticker.C:
					fn(t)
				}
			}
		}()
		return []chan interface{}{stopping}
	}
}
