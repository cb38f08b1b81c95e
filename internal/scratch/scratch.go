// Package scratch управляет временной директорией одного запроса.
//
// Директория создаётся при входе в обработку POST и удаляется целиком
// при выходе из неё, в том числе после паники. Типичное использование:
//
//	dir, err := scratch.Acquire(root)
//	if err != nil {
//		return err
//	}
//	defer dir.Release()
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Prefix — префикс имени директории запроса.
const Prefix = "budget-aggregator-"

// Dir — временная директория, принадлежащая одному запросу.
type Dir struct {
	path string
	once sync.Once
	err  error
}

// Acquire создаёт уникальную директорию внутри root. Пустой root означает os.TempDir().
// Имя формируется из UUID, а os.Mkdir падает на существующей директории,
// поэтому два запроса никогда не получат одну и ту же директорию.
func Acquire(root string) (*Dir, error) {
	const op = "scratch.Acquire"

	if root == "" {
		root = os.TempDir()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	path := filepath.Join(root, Prefix+uuid.NewString())
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Dir{path: path}, nil
}

// Path возвращает абсолютный путь директории.
func (d *Dir) Path() string {
	return d.path
}

// Join возвращает абсолютный путь файла name внутри директории.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.path, name)
}

// Release рекурсивно удаляет директорию. Повторные вызовы возвращают
// результат первого. Отсутствие директории ошибкой не считается.
func (d *Dir) Release() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		err := os.RemoveAll(d.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			d.err = fmt.Errorf("scratch.Release: %w", err)
		}
	})
	return d.err
}
