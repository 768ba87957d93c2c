// Package scheduler 周期性地执行流水线，支持单次运行和常驻运行两种模式。
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
)

// State 调度器状态
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Job 一次流水线运行
type Job func(ctx context.Context) error

// Scheduler 调度器。同一时刻只有一次运行
type Scheduler struct {
	job      Job
	interval time.Duration
	poll     time.Duration

	state atomic.Int32
	runs  atomic.Int64
}

// New 创建调度器。interval 为两次运行的间隔，poll 为等待期间检查停止信号的周期
func New(job Job, interval, poll time.Duration) *Scheduler {
	if poll <= 0 {
		poll = time.Second
	}
	return &Scheduler{job: job, interval: interval, poll: poll}
}

// State 当前状态
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Runs 已完成的运行次数
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// RunOnce 执行一次并返回该次运行的错误
func (s *Scheduler) RunOnce(ctx context.Context) error {
	defer s.state.Store(int32(StateStopped))
	return s.execute(ctx)
}

// Run 常驻运行：执行一次，等待 interval，再执行，直到 ctx 被取消。
// 取消不会中断正在进行的运行，只会阻止下一次开始
func (s *Scheduler) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go s.watch(ctx, done)

	logger.Log.Infof("调度器启动，运行间隔 %s", s.interval)
	for ctx.Err() == nil {
		if err := s.execute(ctx); err != nil {
			logger.Log.Errorf("本次运行失败，等待下一次调度: %v", err)
		}
		if ctx.Err() != nil {
			break
		}
		s.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))
		logger.Log.Infof("下一次运行时间: %s", time.Now().Add(s.interval).Format(time.DateTime))
		if !s.wait(ctx) {
			break
		}
	}

	s.state.Store(int32(StateStopped))
	logger.Log.Infof("调度器已停止，共运行 %d 次", s.Runs())
	return nil
}

// watch 收到停止信号后把状态切到 Stopping
func (s *Scheduler) watch(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		logger.Log.Info("收到停止信号，当前运行结束后退出")
		for {
			cur := s.state.Load()
			if cur == int32(StateStopped) || s.state.CompareAndSwap(cur, int32(StateStopping)) {
				return
			}
		}
	case <-done:
	}
}

// wait 按 poll 周期检查停止信号，等满 interval 返回 true，被取消返回 false
func (s *Scheduler) wait(ctx context.Context) bool {
	deadline := time.Now().Add(s.interval)
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			if !now.Before(deadline) {
				return true
			}
		}
	}
}

// execute 执行一次任务，panic 会被转换为错误
func (s *Scheduler) execute(ctx context.Context) (err error) {
	if ctx.Err() == nil {
		s.state.Store(int32(StateRunning))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		s.runs.Add(1)
	}()
	return s.job(context.WithoutCancel(ctx))
}
