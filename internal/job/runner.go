package job

import (
	"context"
	"sync"
)

// Job 后台任务，Start 阻塞直到 ctx 取消
type Job interface {
	Start(ctx context.Context)
}

// StartAll 启动全部任务
// 返回的 wait 阻塞到所有任务退出，关闭数据库和 Kafka 之前必须调用
func StartAll(ctx context.Context, jobs ...Job) (wait func()) {
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			j.Start(ctx)
		}(j)
	}
	return wg.Wait
}
