// Package scheduler реализует автоматический запуск pipelines по расписанию.
//
// Scheduler периодически проверяет schedules с истекшим next_due_at
// и стартует выполнение через executor.
//
// Структура:
//   - scheduler.go — основная логика (Run, Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    ScheduleRepo: scheduleRepo,
//	    Pipelines:    live,
//	    Starter:      exec,
//	    Logger:       logger,
//	})
//
//	go sched.Run(ctx, 15*time.Second)
//
// Если pipeline ещё выполняется, когда расписание сработало, тик
// пропускается: next_due_at сдвигается вперёд, дубликаты запусков
// не создаются.
package scheduler
