// каждая джоба выполняется одним воркером оркестратора
package jobs

import (
	"log"
	"sync"
	"time"
)

// JobOutput - результат выполнения джобы
type JobOutput struct {
	Success bool
	Data    interface{}
	Error   error
}

// BaseJob - общая часть всех джоб в очереди оркестратора
type BaseJob struct {
	ID         string
	ResultChan chan *JobOutput // обязательно буферизированный канал, 1
	CreatedAt  time.Time
	notified   sync.Once
}

// Complete отправляет результат в результирующий канал; повторные вызовы игнорируются
func (j *BaseJob) Complete(data interface{}, err error) {
	j.notified.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				// канал закрыт (очень редкий случай)
				log.Printf("job %s: канал закрыт при отправке результата", j.ID)
			}
		}()

		j.ResultChan <- &JobOutput{
			Success: err == nil,
			Data:    data,
			Error:   err,
		}
	})
}

// GetID возвращает ID джобы
func (j *BaseJob) GetID() string {
	return j.ID
}
