package model

import (
	"fmt"
	"strings"
	"time"
)

// pg_dump prints this when -t matches nothing, i.e. the table was dropped
// after it was listed.
const NoMatchingTables = "No matching tables were found"

type Job struct {
	DbName string
	TbName string
}

func (self Job) String() string {
	return fmt.Sprintf("[%s] %s", self.DbName, self.TbName)
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSoftFailure
	OutcomeHardFailure
)

func (self Outcome) String() string {
	switch self {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftFailure:
		return "soft_failure"
	default:
		return "hard_failure"
	}
}

// DumpOutcome is the result of one pg_dump invocation. Err is set when the
// process could not be started or did not exit normally.
type DumpOutcome struct {
	ExitStatus int
	Output     string
	Err        error
}

func (self DumpOutcome) Classify() Outcome {
	if self.ExitStatus == 0 && self.Err == nil {
		return OutcomeSuccess
	}
	if self.ExitStatus > 0 && strings.Contains(self.Output, NoMatchingTables) {
		return OutcomeSoftFailure
	}
	return OutcomeHardFailure
}

func (self DumpOutcome) Error() string {
	msg := strings.TrimSpace(self.Output)
	if self.Err != nil {
		if msg == "" {
			return fmt.Sprintf("exit status %d: %s", self.ExitStatus, self.Err)
		}
		return fmt.Sprintf("exit status %d: %s: %s", self.ExitStatus, self.Err, msg)
	}
	return fmt.Sprintf("exit status %d: %s", self.ExitStatus, msg)
}

type Verdict int

const (
	VerdictOngoing Verdict = iota
	VerdictSucceeded
	VerdictFailed
)

func (self Verdict) String() string {
	switch self {
	case VerdictSucceeded:
		return "succeeded"
	case VerdictFailed:
		return "failed"
	default:
		return "ongoing"
	}
}

// ValidationRun is the supervisor's view of one verify run.
type ValidationRun struct {
	RunId     string
	Databases []string
	Enqueued  int
	QueueSize int
	Started   time.Time
	Liveness  []bool
	Succeeded int
	Vanished  int
	Failed    int
	Verdict   Verdict
}

func (self *ValidationRun) Elapsed() time.Duration {
	return time.Since(self.Started).Round(time.Second)
}

func (self *ValidationRun) GetLog() string {
	alive := 0
	for _, v := range self.Liveness {
		if v {
			alive++
		}
	}
	return fmt.Sprintf("[run %s] [Verdict:%s Databases:%d Enqueued:%d Queued:%d Succeeded:%d Vanished:%d Failed:%d Workers:%d/%d Elapsed:%s]",
		self.RunId, self.Verdict, len(self.Databases), self.Enqueued, self.QueueSize, self.Succeeded, self.Vanished, self.Failed,
		alive, len(self.Liveness), self.Elapsed())
}

type TableInfo struct {
	Source     []string
	Target     []string
	Skip       []string
	ToCheck    []string
	SourceMore []string
	TargetMore []string
}

// Result is the row count comparison of one table.
type Result struct {
	DbName         string
	TbName         string
	Status         int //-1:unknown,0:different,1:same
	Message        string
	SourceRows     int64
	TargetRows     int64
	ExecuteSeconds int
}

func (self *Result) StatusText() string {
	switch self.Status {
	case 0:
		return "no"
	case 1:
		return "yes"
	default:
		return "unknown"
	}
}

func (self *Result) GetShortLog() string {
	return fmt.Sprintf("[%s.%s] [Mode:count Status:%d SourceRows:%d TargetRows:%d]", self.DbName, self.TbName, self.Status, self.SourceRows, self.TargetRows)
}

// WorkerState is where a verify worker is in its fetch and dump loop.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerDequeuing
	WorkerDumping
	WorkerTerminated
)

func (self WorkerState) String() string {
	switch self {
	case WorkerIdle:
		return "idle"
	case WorkerDequeuing:
		return "dequeuing"
	case WorkerDumping:
		return "dumping"
	default:
		return "terminated"
	}
}
