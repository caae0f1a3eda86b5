package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers that only care about the category.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindInternal            ErrorKind = "INTERNAL"
)

// Error is the typed failure returned by every engine operation.
// Code is stable and machine readable; Message is shown to end users.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	if e.Code == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// RejectionKind marks expected business failures so they are not logged as faults.
func (e *Error) RejectionKind() bool {
	return e.Kind != KindInternal
}

// Is matches on code when the target carries one, otherwise on kind.
// This lets callers write errors.Is(err, domain.ErrNotFound) as well as
// errors.Is(err, domain.Fail(domain.CodeCarInProgress)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// Kind sentinels, use with errors.Is.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrForbidden           = &Error{Kind: KindForbidden}
)

// Machine codes.
const (
	CodeInvalidAmount          = "invalid_amount"
	CodeAmountBelowMinimum     = "amount_below_minimum"
	CodeInvalidMethod          = "invalid_method"
	CodeSameHolder             = "same_holder"
	CodeHolderNotFound         = "holder_not_found"
	CodeNotEnoughBalance       = "not_enough_balance"
	CodeCarBalanceBlocked      = "car_balance_blocked"
	CodeConcurrencyConflict    = "concurrency_conflict"
	CodeForbidden              = "forbidden"
	CodeTransactionNotFound    = "transaction_not_found"
	CodeTransactionNotPending  = "transaction_not_pending"
	CodeCarNotFound            = "car_not_found"
	CodeCarInactive            = "car_inactive"
	CodeCompanyInactive        = "company_inactive"
	CodeDriverNotFound         = "driver_not_found"
	CodeDriverInactive         = "driver_inactive"
	CodeDriverCompanyMismatch  = "driver_company_mismatch"
	CodeCarInProgress          = "car_in_progress"
	CodeDayNotAllowed          = "day_not_allowed"
	CodeDailyLimitExceeded     = "daily_limit_exceeded"
	CodeMeterRequired          = "meter_required"
	CodeMeterPhotoRequired     = "meter_photo_required"
	CodeMeterRegression        = "meter_regression"
	CodePumpPhotoRequired      = "pump_photo_required"
	CodeOperationNotStarted    = "operation_not_started"
	CodeTimeWindowExceeded     = "time_window_exceeded"
	CodeQuantityExceedsMaximum = "quantity_exceeds_maximum"
	CodeServiceNotAssigned     = "service_not_assigned"
	CodeServiceNotFound        = "service_not_found"
	CodeInvalidServiceKind     = "invalid_service_kind"
	CodeOperationNotFound      = "operation_not_found"
	CodeOperationCompleted     = "operation_completed"
	CodeInvalidOperationState  = "invalid_operation_state"
	CodeStationBranchNotFound  = "station_branch_not_found"
	CodeStationBranchInactive  = "station_branch_inactive"
	CodeWorkerBranchMismatch   = "worker_branch_mismatch"
	CodeUserNotFound           = "user_not_found"
)

type failure struct {
	kind    ErrorKind
	message string
}

var catalog = map[string]failure{
	CodeInvalidAmount:          {KindValidation, "المبلغ غير صحيح"},
	CodeAmountBelowMinimum:     {KindValidation, "المبلغ أقل من الحد الأدنى المسموح"},
	CodeInvalidMethod:          {KindValidation, "طريقة الدفع غير صحيحة"},
	CodeSameHolder:             {KindValidation, "لا يمكن التحويل إلى نفس المحفظة"},
	CodeHolderNotFound:         {KindNotFound, "المحفظة غير موجودة"},
	CodeNotEnoughBalance:       {KindInsufficientBalance, "الرصيد غير كافي"},
	CodeCarBalanceBlocked:      {KindValidation, "رصيد السيارة مجمد أثناء وجود عملية جارية"},
	CodeConcurrencyConflict:    {KindConcurrencyConflict, "تم تعديل الرصيد بواسطة عملية أخرى، حاول مرة أخرى"},
	CodeForbidden:              {KindForbidden, "غير مصرح لك بتنفيذ هذا الإجراء"},
	CodeTransactionNotFound:    {KindNotFound, "المعاملة غير موجودة"},
	CodeTransactionNotPending:  {KindValidation, "المعاملة ليست قيد الانتظار"},
	CodeCarNotFound:            {KindNotFound, "السيارة غير موجودة"},
	CodeCarInactive:            {KindValidation, "السيارة غير مفعلة"},
	CodeCompanyInactive:        {KindValidation, "الشركة غير مفعلة"},
	CodeDriverNotFound:         {KindNotFound, "السائق غير موجود"},
	CodeDriverInactive:         {KindValidation, "السائق غير مفعل"},
	CodeDriverCompanyMismatch:  {KindValidation, "السائق لا يتبع نفس شركة السيارة"},
	CodeCarInProgress:          {KindValidation, "يوجد عملية جارية لهذه السيارة"},
	CodeDayNotAllowed:          {KindValidation, "غير مسموح للسيارة بالتموين في هذا اليوم"},
	CodeDailyLimitExceeded:     {KindValidation, "تم تجاوز الحد اليومي لعمليات التموين"},
	CodeMeterRequired:          {KindValidation, "قراءة العداد مطلوبة"},
	CodeMeterPhotoRequired:     {KindValidation, "صورة العداد مطلوبة"},
	CodeMeterRegression:        {KindValidation, "قراءة العداد أقل من آخر قراءة مسجلة"},
	CodePumpPhotoRequired:      {KindValidation, "صورة الطلمبة مطلوبة"},
	CodeOperationNotStarted:    {KindValidation, "العملية لم تبدأ بعد"},
	CodeTimeWindowExceeded:     {KindValidation, "انتهى الوقت المسموح لإتمام العملية"},
	CodeQuantityExceedsMaximum: {KindValidation, "الكمية أكبر من الحد الأقصى المسموح"},
	CodeServiceNotAssigned:     {KindValidation, "الخدمة غير متاحة في هذا الفرع"},
	CodeServiceNotFound:        {KindNotFound, "الخدمة غير موجودة"},
	CodeInvalidServiceKind:     {KindValidation, "نوع الخدمة غير مناسب لهذه العملية"},
	CodeOperationNotFound:      {KindNotFound, "العملية غير موجودة"},
	CodeOperationCompleted:     {KindValidation, "العملية مكتملة بالفعل"},
	CodeInvalidOperationState:  {KindValidation, "حالة العملية لا تسمح بهذا الإجراء"},
	CodeStationBranchNotFound:  {KindNotFound, "فرع المحطة غير موجود"},
	CodeStationBranchInactive:  {KindValidation, "فرع المحطة غير مفعل"},
	CodeWorkerBranchMismatch:   {KindForbidden, "العامل لا يتبع فرع المحطة الخاص بالعملية"},
	CodeUserNotFound:           {KindNotFound, "المستخدم غير موجود"},
}

// Fail builds the catalogued failure for code.
func Fail(code string) *Error {
	f, ok := catalog[code]
	if !ok {
		return &Error{Kind: KindInternal, Code: code, Message: "حدث خطأ غير متوقع"}
	}
	return &Error{Kind: f.kind, Code: code, Message: f.message}
}

// FailField is Fail with the offending input field attached.
func FailField(code, field string) *Error {
	e := Fail(code)
	e.Field = field
	return e
}

// ConflictFrom wraps a storage-level race into a ConcurrencyConflict.
func ConflictFrom(cause error) *Error {
	e := Fail(CodeConcurrencyConflict)
	e.Cause = cause
	return e
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the machine code of err, or "internal_error".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	return "internal_error"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}
