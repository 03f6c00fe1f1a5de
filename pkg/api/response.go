package api

// Response 桌面端绑定方法的统一返回格式，失败时 Code 供前端做国际化
type Response[T any] struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// EmptyData 无业务数据
type EmptyData struct{}

func OK[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

// Empty 无数据的成功响应
func Empty() Response[EmptyData] {
	return OK(EmptyData{})
}

func Fail[T any](code, message string) Response[T] {
	return Response[T]{Code: code, Message: message}
}
