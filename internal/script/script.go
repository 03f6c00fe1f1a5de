// Package script 提供注入页面的监控脚本。
package script

import (
	_ "embed"
	"regexp"
	"strings"
)

// DefaultBindingName 页面向宿主发送消息的绑定函数名
const DefaultBindingName = "__webprobeBridge"

const bindingPlaceholder = "__BINDING__"

//go:embed instrument.js
var instrumentSource string

var bindingNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ValidBindingName 绑定名必须是合法的 JS 标识符
func ValidBindingName(name string) bool {
	return bindingNamePattern.MatchString(name)
}

// Source 返回绑定到指定函数名的脚本，名称非法时使用默认名称
func Source(bindingName string) string {
	if !ValidBindingName(bindingName) {
		bindingName = DefaultBindingName
	}
	return strings.Replace(instrumentSource, bindingPlaceholder, bindingName, 1)
}
