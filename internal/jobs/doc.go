// Package jobs — клиент длительных вычислительных jobs на удалённом сервисе.
//
// # Обзор
//
// Каждый неинпутовый узел pipeline — прокси для long-running job
// (генерация каркаса, дизайн последовательности, предсказание структуры,
// докинг) на внешнем вычислительном сервисе. Контракт одинаков для всех
// типов jobs, различаются только endpoints и форма payload:
//
//	submit(params) → {job_id}   — немедленный ответ, job в очереди
//	poll(job_id)   → status     — до терминального статуса
//	cancel(job_id) → ack        — best-effort
//
// # Ключевые компоненты
//
// ## Client
//
// Интерфейс submit/status/cancel. HTTPClient — реализация поверх
// HTTP API сервиса:
//
//	POST {base}/{jobType}/submit
//	GET  {base}/{jobType}/status/{jobID}
//	POST {base}/{jobType}/cancel/{jobID}
//
// ## Adapter
//
// Адаптер типа job: валидирует и сужает свободный config узла в
// типизированный запрос, нормализует сырой результат сервиса в
// domain.JobResult (tagged union). "Утиная типизация" остаётся
// на границе, ядро работает с типизированными структурами.
//
// ## Poller
//
// Явная state machine поверх абстракции Clock (submit → scheduled poll →
// terminal), что позволяет детерминированно тестировать без реальных
// задержек. Правила:
//
//   - Фиксированный интервал между опросами (default 5s)
//   - Транзиентные ошибки (сеть, 5xx) — тихий retry до потолка
//   - 400/401/403/404/410 — терминальный отказ, опрос прекращается
//   - Потолок по wall-clock (зависит от типа job) → ErrStillRunning,
//     это не hard failure
//   - Оценка прогресса от прошедшего времени, монотонно неубывающая,
//     если сервер не присылает свою
package jobs
