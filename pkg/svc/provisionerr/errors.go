// Package provisionerr defines the error taxonomy shared by the provisioning steps.
//
// Each failure class has a sentinel for errors.Is checks and a struct carrying
// the details for errors.As checks. The structs match their sentinel through Is.
package provisionerr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for each failure class.
var (
	ErrAcquisition   = errors.New("binary acquisition failed")
	ErrPortExhausted = errors.New("no free port found")
	ErrClusterCreate = errors.New("cluster creation failed")
	ErrTimeout       = errors.New("readiness wait timed out")
	ErrApply         = errors.New("resource apply rejected")
	ErrPrerequisite  = errors.New("prerequisite not met")
)

// AcquisitionError reports a failed download or move of a tool binary.
type AcquisitionError struct {
	Name string
	URL  string
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s from %s: %v", e.Name, e.URL, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Is matches ErrAcquisition.
func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquisition }

// PortExhaustedError reports that no free port was found within the scan window.
type PortExhaustedError struct {
	Base     int
	Attempts int
}

func (e *PortExhaustedError) Error() string {
	return fmt.Sprintf("%v: checked %d ports starting at %d", ErrPortExhausted, e.Attempts, e.Base)
}

// Is matches ErrPortExhausted.
func (e *PortExhaustedError) Is(target error) bool { return target == ErrPortExhausted }

// ClusterCreateError reports that the cluster manager rejected or timed out a create.
type ClusterCreateError struct {
	Name string
	Err  error
}

func (e *ClusterCreateError) Error() string {
	return fmt.Sprintf("create cluster %q: %v", e.Name, e.Err)
}

func (e *ClusterCreateError) Unwrap() error { return e.Err }

// Is matches ErrClusterCreate.
func (e *ClusterCreateError) Is(target error) bool { return target == ErrClusterCreate }

// TimeoutError reports a readiness gate that did not pass within its bound.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Err       error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.Condition)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ApplyError reports a resource the API server refused to accept.
type ApplyError struct {
	Kind      string
	Namespace string
	Name      string
	Err       error
}

func (e *ApplyError) Error() string {
	ref := e.Kind + "/" + e.Name
	if e.Namespace != "" {
		ref = e.Namespace + "/" + ref
	}

	return fmt.Sprintf("apply %s: %v", ref, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Is matches ErrApply.
func (e *ApplyError) Is(target error) bool { return target == ErrApply }

// PrerequisiteError reports a missing or unreachable host dependency.
type PrerequisiteError struct {
	What string
	Err  error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s is not available: %v", e.What, e.Err)
}

func (e *PrerequisiteError) Unwrap() error { return e.Err }

// Is matches ErrPrerequisite.
func (e *PrerequisiteError) Is(target error) bool { return target == ErrPrerequisite }
