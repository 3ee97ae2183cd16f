package sqlinline

// Monthly generation quota. fn_check_quota is read-only; fn_consume_quota is
// the single atomic check-then-increment used after an accepted submission.

const QCheckUsageQuota = `--sql 7c3f2a91-5e0d-4b7a-9c24-1f8a6d3e0b52
select allowed, remaining, quota_limit, used
from fn_check_quota($1::uuid, $2::text);
`

const QConsumeUsageQuota = `--sql d4b81f06-2a97-4c3e-8d15-6e0c9b7a42f1
select remaining from fn_consume_quota($1::uuid, $2::text);
`

const QInsertUsageEvent = `--sql e40f651c-a8b3-44c7-a911-bb8a0ed5f6ef
insert into usage_events(id, user_id, event_type, provider, success, error_message, created_at, properties)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::boolean, nullif($5::text, ''), now(), coalesce($6::jsonb, '{}'::jsonb));
`
