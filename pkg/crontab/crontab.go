package crontab

import (
	"github.com/caiflower/httpengine/global"
	"github.com/caiflower/httpengine/pkg/basic"
	"github.com/caiflower/httpengine/pkg/logger"
	"github.com/robfig/cron/v3"
)

// CronManger wraps a github.com/robfig/cron/v3 scheduler with second-level
// precision and registers itself with global.DefaultResourceManger on
// Start, so an embedder's graceful shutdown stops it the same way it stops
// server.Server. server.Server keeps one private CronManger per instance
// for its heartbeat job, rather than sharing a single package-level
// scheduler across every server in a process.
type CronManger struct {
	name string
	cron *cron.Cron
}

func NewCronTabManger(name string) *CronManger {
	return &CronManger{name: name, cron: cron.New(cron.WithSeconds())}
}

func (c *CronManger) Start() {
	c.cron.Start()
	global.DefaultResourceManger.Add(c)
}

func (c *CronManger) Close() {
	c.cron.Stop()
}

func (c *CronManger) AddCronJob(spec string, job cron.Job) (cron.EntryID, error) {
	eid, err := c.cron.AddJob(spec, job)
	if err != nil {
		logger.Error("[Crontab:%s] add job failed. spec=%s. err=%v", c.name, spec, err)
		return eid, err
	}
	logger.Info("[Crontab:%s] add job. spec=%s. jobId=%v. nextTime=%s", c.name, spec, eid, basic.TimeStandard(c.cron.Entry(eid).Next))
	return eid, err
}

func (c *CronManger) RemoveCronJob(id cron.EntryID) {
	c.cron.Remove(id)
}
