// Package api содержит HTTP API сервер движка.
//
// Структура:
//   - handler.go            — Handler с DI и реестром живых pipelines
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - pipeline_handler.go   — CRUD pipeline и правки графа
//   - execution_handler.go  — запуск/остановка и журнал executions
//   - schedule_handler.go   — обработчики для /schedules
//
// Реестр живых pipelines нужен, потому что executor мутирует статусы
// узлов объекта в памяти: обработчики, запускающие и читающие одно
// выполнение, должны видеть один и тот же экземпляр.
package api
