package services

import (
	"fmt"
	"strings"
)

// RemoteFetchError 远程请求失败（网络、非2xx状态或响应体解析失败）
type RemoteFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *RemoteFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote fetch %s failed with status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("remote fetch %s failed: %v", e.URL, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// InvalidGeometryError 坐标缺失或非数值
type InvalidGeometryError struct {
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return "invalid geometry: " + e.Reason
}

// MediaPersistError 媒体文件下载或写入存储失败
type MediaPersistError struct {
	Name string
	Err  error
}

func (e *MediaPersistError) Error() string {
	return fmt.Sprintf("saving media %s failed: %v", e.Name, e.Err)
}

func (e *MediaPersistError) Unwrap() error {
	return e.Err
}

type UnknownAuthorError struct {
	Author string
}

func (e *UnknownAuthorError) Error() string {
	return "no user found with this id or email: " + e.Author
}

type InvalidKindError struct {
	Type string
}

func (e *InvalidKindError) Error() string {
	return "the value of parameter type " + e.Type + " is not correct"
}

type InvalidProviderError struct {
	Provider string
}

func (e *InvalidProviderError) Error() string {
	return "the value of parameter provider " + e.Provider + " is not correct"
}

type InvalidEndpointError struct {
	Endpoint string
	Matches  []string
}

func (e *InvalidEndpointError) Error() string {
	if len(e.Matches) > 1 {
		return fmt.Sprintf("the value of parameter endpoint %s is ambiguous, matches: %s", e.Endpoint, strings.Join(e.Matches, ", "))
	}
	return "the value of parameter endpoint " + e.Endpoint + " is not correct"
}

type InvalidNameFormatError struct {
	Placeholder string
}

func (e *InvalidNameFormatError) Error() string {
	return "the value of parameter " + e.Placeholder + " can not be found"
}

type InvalidActivityError struct {
	Activity string
}

func (e *InvalidActivityError) Error() string {
	return "the value of parameter activity " + e.Activity + " is not correct"
}
