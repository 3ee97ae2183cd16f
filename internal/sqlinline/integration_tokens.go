package sqlinline

const QSelectIntegrationToken = `--sql 9a14c7de-63b2-4f8a-b5d0-2c7e91f4a803
select token
from integration_tokens
where provider = $1::text
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql 51e8b2c4-07df-4a96-8e31-d9a45c6f7b20
insert into integration_tokens(provider, token, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider)
do update set token = excluded.token, properties = excluded.properties, updated_at = now();
`
