package services

import (
	"os"
	"path/filepath"
)

// Storage 对象存储接口，媒体文件与分类映射文件共用
type Storage interface {
	Put(name string, content []byte) error
	Get(name string) ([]byte, error)
	Exists(name string) bool
}

// LocalStorage 本地磁盘存储
type LocalStorage struct {
	Dir string
}

func NewLocalStorage(dir string) *LocalStorage {
	os.MkdirAll(dir, 0755)
	return &LocalStorage{Dir: dir}
}

func (s *LocalStorage) Put(name string, content []byte) error {
	return os.WriteFile(filepath.Join(s.Dir, name), content, 0644)
}

func (s *LocalStorage) Get(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Dir, name))
}

func (s *LocalStorage) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.Dir, name))
	return err == nil
}
