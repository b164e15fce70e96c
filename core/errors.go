package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message），可选包装底层错误（Err）
//   - 支持错误检查函数（IsXXX），基于 errors.As，因此经过 %w 包装后仍可识别
//
// 错误分类：
//   - CONFIGURATION：schema 映射缺失/错误、无特征列、用户或物品不足以支撑 rank，训练终止
//   - INPUT_COERCION：评分非数值、表格无法解析，训练终止
//   - DISPATCH：请求缺少模型类型所需字段、artifact 缺失或损坏，只通过响应信封返回
//   - 查找未命中（未知标题/用户）不是错误，返回空列表
type DomainError struct {
	Code    string // 错误代码（如 "CONFIGURATION", "NOT_FOUND"）
	Message string // 错误消息
	Module  string // 模块名称（如 "table", "model", "artifact"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否包含 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装了底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeAlreadyExists = "ALREADY_EXISTS" // 写一次资源已存在
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	ErrorCodeConfiguration = "CONFIGURATION"  // schema / 训练配置错误
	ErrorCodeInputCoercion = "INPUT_COERCION" // 数据类型转换失败
	ErrorCodeDispatch      = "DISPATCH"       // 预测请求无法路由
	ErrorCodeCorrupt       = "CORRUPT"        // artifact 校验失败
)

// 模块名称常量
const (
	ModuleTable    = "table"    // 表格与 schema
	ModuleModel    = "model"    // 推荐模型
	ModuleArtifact = "artifact" // artifact bundle
	ModuleStore    = "store"    // 存储模块
	ModuleRegistry = "registry" // 模型版本注册
	ModuleService  = "service"  // 预测服务
	ModuleTrain    = "train"    // 训练编排
	ModuleConfig   = "config"   // 应用配置
)

// Configurationf 创建 CONFIGURATION 错误。
func Configurationf(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeConfiguration, fmt.Sprintf(format, args...))
}

// InputCoercionf 创建 INPUT_COERCION 错误。
func InputCoercionf(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeInputCoercion, fmt.Sprintf(format, args...))
}

// Dispatchf 创建 DISPATCH 错误。
func Dispatchf(format string, args ...any) *DomainError {
	return NewDomainError(ModuleService, ErrorCodeDispatch, fmt.Sprintf(format, args...))
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsAlreadyExists 检查错误是否为 ALREADY_EXISTS
func IsAlreadyExists(err error) bool { return hasCode(err, ErrorCodeAlreadyExists) }

// IsConfiguration 检查错误是否为 CONFIGURATION
func IsConfiguration(err error) bool { return hasCode(err, ErrorCodeConfiguration) }

// IsInputCoercion 检查错误是否为 INPUT_COERCION
func IsInputCoercion(err error) bool { return hasCode(err, ErrorCodeInputCoercion) }

// IsDispatch 检查错误是否为 DISPATCH
func IsDispatch(err error) bool { return hasCode(err, ErrorCodeDispatch) }

// IsCorrupt 检查错误是否为 CORRUPT
func IsCorrupt(err error) bool { return hasCode(err, ErrorCodeCorrupt) }
