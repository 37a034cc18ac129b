/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const CloudLabPrefix = "CloudLab."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00–99), used to distinguish errors from different business interfaces.
   00: General errors
   01: Job-related errors
   02: Service-related errors
   03: Schedule-related errors
   04: Inventory-related errors
   [yyy] Error code range (000–999)
*/

// public: 00xxx
const (
	InternalError = CloudLabPrefix + "00001"
	BadRequest    = CloudLabPrefix + "00002"
	Forbidden     = CloudLabPrefix + "00003"
	AlreadyExist  = CloudLabPrefix + "00004"
	NotFound      = CloudLabPrefix + "00005"
	Unauthorized  = CloudLabPrefix + "00006"
	Conflict      = CloudLabPrefix + "00007"
)

// job: 01xxx
const (
	JobNotFound = CloudLabPrefix + "01001"
)

// service: 02xxx
const (
	ServiceNotFound = CloudLabPrefix + "02001"
)

// schedule: 03xxx
const (
	ScheduleNotFound = CloudLabPrefix + "03001"
)

// inventory: 04xxx
const (
	InventoryNotFound = CloudLabPrefix + "04001"
)

// returns true if the specified error reason is a cloudlab error.
func IsCloudLab(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(string(apierrors.ReasonForError(err)), CloudLabPrefix)
}

func IsAlreadyExist(err error) bool {
	return apierrors.ReasonForError(err) == AlreadyExist
}

func IsBadRequest(err error) bool {
	return apierrors.ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return apierrors.ReasonForError(err) == InternalError
}

func IsForbidden(err error) bool {
	return apierrors.ReasonForError(err) == Forbidden
}

func IsConflict(err error) bool {
	return apierrors.ReasonForError(err) == Conflict
}

func IsNotFound(err error) bool {
	switch apierrors.ReasonForError(err) {
	case NotFound, JobNotFound, ServiceNotFound, ScheduleNotFound, InventoryNotFound:
		return true
	}
	return false
}

func IgnoreFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func GetErrorCode(err error) string {
	if err == nil || !IsCloudLab(err) {
		return ""
	}
	return string(apierrors.ReasonForError(err))
}

func NewBadRequest(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  BadRequest,
		Message: fmt.Sprintf("Bad request. %s", message),
	}}
}

func NewInternalError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  InternalError,
		Message: fmt.Sprintf("Internal error. %s", message),
	}}
}

func NewAlreadyExist(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  AlreadyExist,
		Message: message,
	}}
}

func NewConflict(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  Conflict,
		Message: message,
	}}
}

func NewForbidden(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusForbidden,
		Reason:  Forbidden,
		Message: message,
	}}
}

func NewUnauthorized(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusUnauthorized,
		Reason:  Unauthorized,
		Message: message,
	}}
}

func NotFoundErrorCode(kind string) metav1.StatusReason {
	switch kind {
	case "Job":
		return JobNotFound
	case "Service":
		return ServiceNotFound
	case "Schedule":
		return ScheduleNotFound
	case "InventoryObject", "InventoryType":
		return InventoryNotFound
	default:
		return NotFound
	}
}

func NewNotFound(kind, name string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusNotFound,
		Reason: NotFoundErrorCode(kind),
		Details: &metav1.StatusDetails{
			Kind: kind,
			Name: name,
		},
		Message: fmt.Sprintf("%s %s not found.", kind, name),
	}}
}

func NewNotFoundWithMessage(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusNotFound,
		Reason:  NotFound,
		Message: message,
	}}
}
